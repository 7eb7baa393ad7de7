// Package filestore provides the read, write and copy primitives the build
// pipeline runs on. It is backed by an afero.Fs so the same code serves the
// real disk and in-memory trees.
package filestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	stitcherrors "github.com/conneroisu/stitch/internal/errors"
	"github.com/spf13/afero"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Store reads and writes files on an afero filesystem.
type Store struct {
	fs afero.Fs
}

// New wraps an afero filesystem.
func New(fsys afero.Fs) *Store {
	return &Store{fs: fsys}
}

// NewOS returns a Store over the real filesystem.
func NewOS() *Store {
	return New(afero.NewOsFs())
}

// Fs exposes the underlying filesystem.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// ReadFile returns the contents of path.
func (s *Store) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(s.fs, path)
}

// WriteFile writes data to path, creating parent directories.
func (s *Store) WriteFile(path string, data []byte) error {
	if err := s.fs.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}

	return afero.WriteFile(s.fs, path, data, filePerm)
}

// WriteWithRetry writes data to path. When the first attempt fails, it
// removes whatever occupies path and tries exactly once more.
func (s *Store) WriteWithRetry(path string, data []byte) error {
	firstErr := s.WriteFile(path, data)
	if firstErr == nil {
		return nil
	}

	if err := s.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		firstErr = errors.Join(firstErr, err)
	}

	if err := s.WriteFile(path, data); err != nil {
		return stitcherrors.NewIOError(stitcherrors.CodeWriteFailed, "write failed after retry", errors.Join(firstErr, err)).
			WithPath(path)
	}

	return nil
}

// RemoveAll removes path and everything below it.
func (s *Store) RemoveAll(path string) error {
	return s.fs.RemoveAll(path)
}

// MkdirAll creates path and any missing parents.
func (s *Store) MkdirAll(path string) error {
	return s.fs.MkdirAll(path, dirPerm)
}

// Exists reports whether path exists.
func (s *Store) Exists(path string) bool {
	_, err := s.fs.Stat(path)
	return err == nil
}

// IsDir reports whether path exists and is a directory.
func (s *Store) IsDir(path string) bool {
	info, err := s.fs.Stat(path)
	return err == nil && info.IsDir()
}

// Walk walks the tree rooted at root in lexical order.
func (s *Store) Walk(root string, fn filepath.WalkFunc) error {
	return afero.Walk(s.fs, root, fn)
}

// CopyVisitor is called once per copied file with its path relative to the
// source root and the error, if any, that copying it produced.
type CopyVisitor func(rel string, err error)

// CopyTree copies every file below src to the same relative location below
// dst. A file that fails to copy is reported to visit and skipped; only a
// missing source or a failed walk makes CopyTree itself fail.
func (s *Store) CopyTree(src, dst string, visit CopyVisitor) error {
	if !s.IsDir(src) {
		return stitcherrors.NewIOError(stitcherrors.CodeSourceMissing, "source directory not found", fs.ErrNotExist).
			WithPath(src)
	}
	if visit == nil {
		visit = func(string, error) {}
	}

	return s.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		target := filepath.Join(dst, rel)

		if info.IsDir() {
			if err := s.MkdirAll(target); err != nil {
				visit(filepath.ToSlash(rel), err)
				return filepath.SkipDir
			}
			return nil
		}

		data, err := s.ReadFile(path)
		if err != nil {
			visit(filepath.ToSlash(rel), stitcherrors.NewIOError(stitcherrors.CodeReadFailed, "could not read file", err).WithPath(path))
			return nil
		}

		visit(filepath.ToSlash(rel), s.WriteWithRetry(target, data))
		return nil
	})
}
