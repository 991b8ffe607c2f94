package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalBackend keeps objects as files under a root directory.
type LocalBackend struct {
	root string
}

// NewLocalBackend constructs a filesystem backend rooted at dir.
func NewLocalBackend(dir string) (*LocalBackend, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("upload dir is required")
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &LocalBackend{root: root}, nil
}

// EnsureBucket creates the root directory.
func (l *LocalBackend) EnsureBucket(ctx context.Context) error {
	return os.MkdirAll(l.root, 0o755)
}

// Put writes the object to disk, replacing any previous file.
func (l *LocalBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	target := l.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), target)
}

func (l *LocalBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(l.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	return f, err
}

func (l *LocalBackend) Delete(ctx context.Context, key string) error {
	err := os.Remove(l.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrObjectNotFound
	}
	return err
}

// Bucket returns the root directory.
func (l *LocalBackend) Bucket() string {
	return l.root
}

func (l *LocalBackend) path(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}
