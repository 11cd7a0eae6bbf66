// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package platform

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileManager performs file operations on an afero filesystem so tests can
// swap in memory or read-only backends.
type FileManager struct {
	fs afero.Fs
}

// NewFileManagerFs creates a file manager on fs.
func NewFileManagerFs(fs afero.Fs) *FileManager {
	return &FileManager{fs: fs}
}

// EnsureDir creates a directory and all parent directories if they don't exist.
func (f *FileManager) EnsureDir(path string) error {
	// #nosec G301 - Standard directory permissions for application directories
	return f.fs.MkdirAll(path, 0o755)
}

// ReadFile reads data from a file. A missing file yields fs.ErrNotExist.
func (f *FileManager) ReadFile(path string) ([]byte, error) {
	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return data, nil
}

// WriteFileAtomic replaces path with data. The data is written to a
// temporary file in the same directory, synced and renamed over the target,
// so readers see either the old or the new content.
func (f *FileManager) WriteFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := f.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := afero.TempFile(f.fs, dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			_ = f.fs.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// #nosec G302 - user data file, readable like other dotfiles
	if err = f.fs.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err = f.fs.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}
