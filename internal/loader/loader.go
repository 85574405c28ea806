// Package loader defines the module-loading abstraction the engine
// invokes when a script imports another file: the engine itself never
// touches a filesystem directly.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Loader resolves a canonical path to a byte stream. Canonicalization
// resolves a relative path against the importer's source file.
type Loader interface {
	Canonicalize(importerFile, path string) (string, error)
	Load(canonicalPath string) ([]byte, error)
}

// FileLoader is a filesystem-backed Loader with reentrant-load detection:
// recursive loads of the same canonical path fail.
type FileLoader struct {
	mu      sync.Mutex
	loading map[string]bool
}

func NewFileLoader() *FileLoader {
	return &FileLoader{loading: make(map[string]bool)}
}

func (l *FileLoader) Canonicalize(importerFile, path string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	base := filepath.Dir(importerFile)
	return filepath.Clean(filepath.Join(base, path)), nil
}

// Enter marks canonicalPath as currently loading, failing if it is
// already in progress (a self-import cycle). Callers must call the
// returned leave function on every exit path.
func (l *FileLoader) Enter(canonicalPath string) (leave func(), err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loading[canonicalPath] {
		return nil, fmt.Errorf("loader: recursive import of %q", canonicalPath)
	}
	l.loading[canonicalPath] = true
	return func() {
		l.mu.Lock()
		delete(l.loading, canonicalPath)
		l.mu.Unlock()
	}, nil
}

func (l *FileLoader) Load(canonicalPath string) ([]byte, error) {
	return os.ReadFile(canonicalPath)
}
