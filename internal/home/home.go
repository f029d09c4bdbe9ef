// Package home resolves the archiver's home-side recordbook layout — the
// one-per-user catalog of every file ever stored, independent of which
// device holds the bytes.
//
// Layout:
//
//	<root>/
//	  recordbook.txt
//	  checksum.txt
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir represents the home recordbook directory.
type Dir struct {
	root string
}

// New creates a Dir with an explicit root path. Used for the DEBUG=1 test
// root (./test_data/.ltarchiver) and for per-test isolation via t.TempDir().
func New(root string) Dir {
	return Dir{root: root}
}

// Default returns a Dir at the platform-appropriate default location:
//   - Linux:   ~/.config/ltarchiver
//   - macOS:   ~/Library/Application Support/ltarchiver
//   - Windows: %APPDATA%/ltarchiver
func Default() (Dir, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return Dir{}, fmt.Errorf("determine config directory: %w", err)
	}
	return Dir{root: filepath.Join(base, "ltarchiver")}, nil
}

// Root returns the home directory path.
func (d Dir) Root() string {
	return d.root
}

// RecordbookPath returns the path to the home recordbook.
func (d Dir) RecordbookPath() string {
	return filepath.Join(d.root, "recordbook.txt")
}

// ChecksumPath returns the path to the home recordbook's checksum sidecar.
func (d Dir) ChecksumPath() string {
	return filepath.Join(d.root, "checksum.txt")
}

// EnsureExists creates the home directory (and parents) if it doesn't exist.
func (d Dir) EnsureExists() error {
	if err := os.MkdirAll(d.root, 0o750); err != nil {
		return fmt.Errorf("create home directory %s: %w", d.root, err)
	}
	return nil
}
