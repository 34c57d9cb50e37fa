package utils

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DataDirEnv lists extra directories searched for templates and static
// files, separated by ':'.
const DataDirEnv = "GSTACK_DATA_DIR"

// RuntimeFileResolver finds data files such as HTML templates relative
// to a search path, the working directory and the executable directory.
type RuntimeFileResolver struct {
	DataDirs []string

	mu         sync.Mutex
	fileLookup map[string]string
}

func NewRuntimeFileResolver(searchPath string) *RuntimeFileResolver {
	resolver := &RuntimeFileResolver{
		fileLookup: make(map[string]string),
	}

	if env, ok := os.LookupEnv(DataDirEnv); ok {
		searchPath = strings.Join([]string{env, searchPath}, ":")
	}
	for _, dataDir := range strings.Split(searchPath, ":") {
		dataDir = strings.TrimSpace(dataDir)
		if len(dataDir) == 0 {
			continue
		}
		resolver.DataDirs = append(resolver.DataDirs, dataDir)
	}

	cwd, err := os.Getwd()
	if err == nil {
		resolver.DataDirs = append(resolver.DataDirs, cwd)
	} else {
		log.Printf("Failed to get CWD: %v", err)
	}

	if exe, err := os.Executable(); err == nil {
		resolver.DataDirs = append(resolver.DataDirs, filepath.Dir(exe))
	}
	return resolver
}

// Resolve returns the first existing candidate for filePath.
func (r *RuntimeFileResolver) Resolve(filePath string) (string, error) {
	if filepath.IsAbs(filePath) {
		_, err := os.Stat(filePath)
		return filePath, err
	}

	for _, dataDir := range r.DataDirs {
		candidate := filepath.Clean(filepath.Join(dataDir, filePath))
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return filePath, fmt.Errorf("Failed to resolve %v in %v", filePath, r.DataDirs)
}

// Lookup is Resolve with the result remembered.
func (r *RuntimeFileResolver) Lookup(filePath string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if path, found := r.fileLookup[filePath]; found {
		return path, nil
	}

	path, err := r.Resolve(filePath)
	if err != nil {
		return "", err
	}
	r.fileLookup[filePath] = path
	return path, nil
}
