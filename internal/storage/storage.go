package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"case-console/internal/model"
)

type ObjectInfo struct {
	ContentType string
	Size        int64
	ModTime     time.Time
}

// ImageStore holds the binary image objects referenced by case records.
type ImageStore interface {
	Put(ctx context.Context, key string, contentType string, body io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// LocalStore keeps objects as files below a root directory.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("image root cannot be empty")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve image root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create image root: %w", err)
	}

	return &LocalStore{root: abs}, nil
}

func (s *LocalStore) RootAbs() string {
	return s.root
}

func (s *LocalStore) resolve(key string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

// Put writes to a temporary sibling and renames it into place so readers
// never observe a partial object.
func (s *LocalStore) Put(_ context.Context, key string, _ string, body io.Reader) (int64, error) {
	resolved, err := s.resolve(key)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return 0, fmt.Errorf("create parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(resolved), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp object: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.CopyBuffer(tmp, body, make([]byte, 32*1024))
	if err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("write object %q: %w", key, err)
	}

	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close object %q: %w", key, err)
	}

	if err := os.Rename(tmp.Name(), resolved); err != nil {
		return 0, fmt.Errorf("commit object %q: %w", key, err)
	}

	return written, nil
}

func (s *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	resolved, err := s.resolve(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}

	file, err := os.Open(resolved)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ObjectInfo{}, model.ErrImageNotFound
	}
	if err != nil {
		return nil, ObjectInfo{}, err
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, ObjectInfo{}, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, ObjectInfo{}, model.ErrImageNotFound
	}

	contentType := mime.TypeByExtension(filepath.Ext(resolved))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return file, ObjectInfo{ContentType: contentType, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	resolved, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(resolved); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %q: %w", key, err)
	}

	return nil
}
