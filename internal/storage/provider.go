// Package storage defines the rooted file-system abstraction used for library
// files and note directories.
package storage

import "time"

// Entry describes one file found under a root.
type Entry struct {
	Path    string    // relative to root
	Abs     string    // absolute path
	ModTime time.Time
}

// Provider is the interface for rooted file operations.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// List walks dir (relative to root) and returns files whose extension is in exts.
	// An empty exts matches every file.
	List(dir string, exts []string) ([]Entry, error)
	// Exists reports whether a regular file exists at path (relative to root).
	Exists(path string) bool
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
	// Abs resolves path (relative to root) to an absolute path inside root.
	Abs(path string) (string, error)
}
