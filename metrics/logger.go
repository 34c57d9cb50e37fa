package metrics

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Logger receives one record per served request.
type Logger interface {
	Log(info *MetricsInfo)
}

type StdoutLogger struct{}

func NewStdoutLogger() *StdoutLogger {
	return &StdoutLogger{}
}

func (l *StdoutLogger) Log(info *MetricsInfo) {
	infoStr, err := info.ToJSON()
	if err != nil {
		log.Printf("StdoutLogger: error: %v", err)
		return
	}
	log.Print(infoStr)
}

const (
	defaultQueueSize      = 2000
	defaultLogWriters     = 2
	defaultMaxLogFileSize = 256 * 1024 * 1024
	defaultMaxLogFiles    = 10
	logFilePrefix         = "gstack_metrics"
)

// FileLogger appends JSON lines to per writer files under LogDir, rotating
// a file once it reaches MaxLogFileSize and keeping at most MaxLogFiles
// rotated copies per writer.
type FileLogger struct {
	MetricsQueue   chan *MetricsInfo
	LogDir         string
	MaxLogFileSize int64
	MaxLogFiles    int
	Verbose        bool

	wg sync.WaitGroup
}

func NewFileLogger(logDir string, maxLogFileSize int64, maxLogFiles int, verbose bool) *FileLogger {
	if maxLogFileSize <= 0 {
		maxLogFileSize = defaultMaxLogFileSize
	}
	if maxLogFiles <= 0 {
		maxLogFiles = defaultMaxLogFiles
	}
	logger := &FileLogger{
		MetricsQueue:   make(chan *MetricsInfo, defaultQueueSize),
		LogDir:         logDir,
		MaxLogFileSize: maxLogFileSize,
		MaxLogFiles:    maxLogFiles,
		Verbose:        verbose,
	}

	for i := 0; i < defaultLogWriters; i++ {
		logger.wg.Add(1)
		go logger.startLogWriter(i)
	}

	return logger
}

func (l *FileLogger) Log(info *MetricsInfo) {
	l.MetricsQueue <- info
}

// Close drains the queue and waits for the writers to exit. Log must not
// be called afterwards.
func (l *FileLogger) Close() {
	close(l.MetricsQueue)
	l.wg.Wait()
}

func (l *FileLogger) logFilePath(idx int) string {
	return filepath.Join(l.LogDir, fmt.Sprintf("%s%d", logFilePrefix, idx))
}

func (l *FileLogger) startLogWriter(idx int) {
	defer l.wg.Done()

	f, err := l.openLogFile(idx)
	if err != nil {
		log.Printf("FileLogger%d: log open error: %v", idx, err)
	}
	defer func() {
		if f != nil {
			f.Close()
		}
	}()

	for info := range l.MetricsQueue {
		infoStr, err := info.ToJSON()
		if err != nil {
			log.Printf("FileLogger%d: info.ToJSON() error: %v", idx, err)
			continue
		}

		if f == nil {
			if f, err = l.openLogFile(idx); err != nil {
				log.Printf("FileLogger%d: log open error: %v", idx, err)
				continue
			}
		}

		f = l.tryRotateLogFile(f, idx)
		if f == nil {
			continue
		}

		if _, err := f.WriteString(infoStr); err != nil {
			log.Printf("FileLogger%d: write error: %v", idx, err)
			continue
		}
		f.Sync()
	}
}

func (l *FileLogger) openLogFile(idx int) (*os.File, error) {
	return os.OpenFile(l.logFilePath(idx), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// rotationTarget picks the first free rotation slot, or the oldest
// rotated file once every slot is taken.
func (l *FileLogger) rotationTarget(idx int) (string, error) {
	for i := 0; i < l.MaxLogFiles; i++ {
		p := fmt.Sprintf("%s.%d", l.logFilePath(idx), i)
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return p, nil
		}
	}

	files, err := ioutil.ReadDir(l.LogDir)
	if err != nil {
		return "", err
	}

	base := filepath.Base(l.logFilePath(idx))
	var oldest os.FileInfo
	oldestTime := time.Now()
	for _, file := range files {
		if !file.Mode().IsRegular() {
			continue
		}
		if !strings.HasPrefix(file.Name(), base+".") {
			continue
		}
		if file.ModTime().Before(oldestTime) {
			oldest = file
			oldestTime = file.ModTime()
		}
	}

	target := fmt.Sprintf("%s.0", l.logFilePath(idx))
	if oldest != nil {
		target = filepath.Join(l.LogDir, oldest.Name())
	}
	if l.Verbose {
		log.Printf("FileLogger%d: maximum number of log files reached, overwriting %s", idx, target)
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return "", err
	}
	return target, nil
}

func (l *FileLogger) tryRotateLogFile(currFile *os.File, idx int) *os.File {
	info, err := currFile.Stat()
	if err != nil {
		log.Printf("FileLogger%d: log rotation error: %v", idx, err)
		return currFile
	}
	if info.Size() < l.MaxLogFileSize {
		return currFile
	}

	target, err := l.rotationTarget(idx)
	if err != nil {
		log.Printf("FileLogger%d: log rotation error: %v", idx, err)
		return currFile
	}

	currFile.Close()
	if err := os.Rename(l.logFilePath(idx), target); err != nil {
		log.Printf("FileLogger%d: log rotation error: %v", idx, err)
	} else if l.Verbose {
		log.Printf("FileLogger%d: log file rotated: %v", idx, target)
	}

	f, err := l.openLogFile(idx)
	if err != nil {
		log.Printf("FileLogger%d: log rotation error: %v", idx, err)
		return nil
	}
	return f
}
