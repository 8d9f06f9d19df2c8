// Package fileutil writes output files so readers never observe a partial
// artifact.
package fileutil

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteAtomic streams content produced by write into a temporary file in the
// destination directory and renames it over path once write succeeds. On any
// error the destination is left untouched.
func WriteAtomic(path string, write func(w io.Writer) error) error {
	var b Batch
	if err := b.Stage(path, write); err != nil {
		b.Abort()
		return err
	}
	return b.Commit()
}

// Batch stages several files next to their destinations and replaces them
// together. Nothing is visible at a destination until Commit.
type Batch struct {
	staged  []staged
	created []string // directories made by Stage, parents first
}

type staged struct {
	tmp  string
	path string
}

// Stage writes one file's content to a temporary file beside path.
func (b *Batch) Stage(path string, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := b.mkdirAll(dir); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	b.staged = append(b.staged, staged{tmp: tmp.Name(), path: path})
	return nil
}

// Paths returns the destinations staged so far, in order.
func (b *Batch) Paths() []string {
	paths := make([]string, 0, len(b.staged))
	for _, s := range b.staged {
		paths = append(paths, s.path)
	}
	return paths
}

// Commit renames every staged file over its destination. A rename failure
// stops the commit and removes the files not yet renamed.
func (b *Batch) Commit() error {
	for i, s := range b.staged {
		if err := os.Rename(s.tmp, s.path); err != nil {
			b.staged = b.staged[i:]
			b.Abort()
			return fmt.Errorf("rename %s: %w", s.path, err)
		}
	}
	b.staged = nil
	b.created = nil
	return nil
}

// Abort removes every staged temporary file and any directory Stage created.
func (b *Batch) Abort() {
	for _, s := range b.staged {
		_ = os.Remove(s.tmp)
	}
	for i := len(b.created) - 1; i >= 0; i-- {
		// Only empty directories are removed.
		_ = os.Remove(b.created[i])
	}
	b.staged = nil
	b.created = nil
}

// mkdirAll creates dir and records which path elements did not exist yet.
func (b *Batch) mkdirAll(dir string) error {
	var missing []string
	for d := dir; ; d = filepath.Dir(d) {
		if _, err := os.Stat(d); err == nil {
			break
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		missing = append(missing, d)
		if filepath.Dir(d) == d {
			break
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i := len(missing) - 1; i >= 0; i-- {
		b.created = append(b.created, missing[i])
	}
	return nil
}
