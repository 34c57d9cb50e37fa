package extractor

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	goeval "github.com/edisonguo/govaluate"
)

// DefaultMaxPosixErrors caps the errors reported by one crawl.
const DefaultMaxPosixErrors = 1000

// PatternVariables are the variables a pattern expression may use. The
// type is "f" for files and "d" for directories.
var PatternVariables = map[string]struct{}{"path": struct{}{}, "type": struct{}{}}

// ExtractPosix crawls rootDir with conc concurrent directory readers and
// returns the files accepted by pattern, sorted by path. Per entry errors
// are collected and returned alongside the results.
func ExtractPosix(rootDir string, conc int, pattern string, followSymlink bool) ([]*PosixInfo, error) {
	absRootDir, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}

	expr, err := parsePatternExpression(pattern)
	if err != nil {
		return nil, err
	}

	crawler := NewPosixCrawler(conc, expr, followSymlink)
	err = crawler.Crawl(absRootDir)
	return crawler.Results(), err
}

func parsePatternExpression(pattern string) (*goeval.EvaluableExpression, error) {
	if len(strings.TrimSpace(pattern)) == 0 {
		return nil, nil
	}

	expr, err := goeval.NewEvaluableExpression(pattern)
	if err != nil {
		return nil, err
	}

	for _, token := range expr.Tokens() {
		if token.Kind != goeval.VARIABLE {
			continue
		}
		name, ok := token.Value.(string)
		if !ok {
			return nil, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
		}
		if _, found := PatternVariables[name]; !found {
			return nil, fmt.Errorf("variable %v is not supported. Valid variables are %v", name, PatternVariables)
		}
	}
	return expr, nil
}

// PosixCrawler walks a directory tree looking for candidate raster files.
// Subdirectories are read on their own goroutine while a slot is free and
// inline otherwise, so a deep tree never blocks on the limiter.
type PosixCrawler struct {
	slots         chan struct{}
	pattern       *goeval.EvaluableExpression
	followSymlink bool

	wg      sync.WaitGroup
	mu      sync.Mutex
	results []*PosixInfo
	errs    []string
	dropped int
}

func NewPosixCrawler(conc int, pattern *goeval.EvaluableExpression, followSymlink bool) *PosixCrawler {
	if conc < 1 {
		conc = 1
	}
	return &PosixCrawler{
		slots:         make(chan struct{}, conc),
		pattern:       pattern,
		followSymlink: followSymlink,
	}
}

// Crawl walks root and blocks until every subdirectory has been read.
func (pc *PosixCrawler) Crawl(root string) error {
	pc.wg.Add(1)
	pc.slots <- struct{}{}
	pc.walk(root, true)
	pc.wg.Wait()

	sort.Slice(pc.results, func(i, j int) bool { return pc.results[i].FilePath < pc.results[j].FilePath })

	if len(pc.errs) == 0 {
		return nil
	}
	msg := strings.Join(pc.errs, "\n")
	if pc.dropped > 0 {
		msg += fmt.Sprintf("\n ... %d more errors", pc.dropped)
	}
	return fmt.Errorf("%s", msg)
}

// Results returns the files found by the last Crawl.
func (pc *PosixCrawler) Results() []*PosixInfo {
	return pc.results
}

func (pc *PosixCrawler) walk(dir string, ownsSlot bool) {
	defer pc.wg.Done()
	if ownsSlot {
		defer func() { <-pc.slots }()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		pc.fail(err)
		return
	}

	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		isDir, fi, err := pc.classify(full, entry)
		if err != nil {
			pc.fail(err)
			continue
		}
		if fi == nil && !isDir {
			continue
		}

		typ := "f"
		if isDir {
			typ = "d"
		}
		ok, err := matchEntry(pc.pattern, full, typ)
		if err != nil {
			pc.fail(err)
			continue
		}
		if !ok {
			continue
		}

		if isDir {
			pc.wg.Add(1)
			select {
			case pc.slots <- struct{}{}:
				go pc.walk(full, true)
			default:
				pc.walk(full, false)
			}
			continue
		}

		info := GetPosixInfo(full, fi)
		pc.mu.Lock()
		pc.results = append(pc.results, info)
		pc.mu.Unlock()
	}
}

// classify resolves an entry to a directory or a regular file. Anything
// else, including symlinks when they are not followed, yields (false, nil).
func (pc *PosixCrawler) classify(full string, entry os.DirEntry) (bool, os.FileInfo, error) {
	mode := entry.Type()
	if mode&os.ModeSymlink != 0 {
		if !pc.followSymlink {
			return false, nil, nil
		}
		fi, err := os.Stat(full)
		if err != nil {
			return false, nil, err
		}
		if fi.IsDir() {
			return true, nil, nil
		}
		if fi.Mode().IsRegular() {
			return false, fi, nil
		}
		return false, nil, nil
	}

	if mode.IsDir() {
		return true, nil, nil
	}
	if !mode.IsRegular() {
		return false, nil, nil
	}
	fi, err := entry.Info()
	if err != nil {
		return false, nil, err
	}
	return false, fi, nil
}

func (pc *PosixCrawler) fail(err error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if len(pc.errs) >= DefaultMaxPosixErrors {
		pc.dropped++
		return
	}
	pc.errs = append(pc.errs, err.Error())
}

// GetPosixInfo builds the crawl record of a regular file. The ID changes
// whenever the file is replaced or rewritten.
func GetPosixInfo(filePath string, fi os.FileInfo) *PosixInfo {
	info := &PosixInfo{
		FilePath: filePath,
		Size:     fi.Size(),
		MTime:    fi.ModTime().UTC(),
	}
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		info.INode = st.Ino
		info.CTime = time.Unix(int64(st.Ctim.Sec), int64(st.Ctim.Nsec)).UTC()
	}
	signature := fmt.Sprintf("%s%d%d%d", filePath, info.INode, info.Size, info.MTime.UnixNano())
	info.ID = fmt.Sprintf("%x", md5.Sum([]byte(signature)))
	return info
}
