package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage keeps archived artifacts on the local filesystem. It is the
// default backend for single-node deployments without object storage.
type LocalStorage struct {
	root      string
	publicURL string
}

// NewLocalStorage creates a storage backend rooted at dir, creating it if
// needed.
func NewLocalStorage(dir, publicURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{
		root:      dir,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

// path maps an object key to a path under the root, rejecting keys that
// would escape it.
func (l *LocalStorage) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return filepath.Join(l.root, clean), nil
}

// Upload writes an object under the storage root
func (l *LocalStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	dest, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	// Write to a temp file first so a crash never leaves a partial object.
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp object: %w", err)
	}
	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close object: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to finalize object: %w", err)
	}
	return nil
}

// Download opens an object for reading
func (l *LocalStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	src, err := l.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return f, nil
}

// GetURL returns the URL for accessing an object
func (l *LocalStorage) GetURL(key string) string {
	if l.publicURL == "" {
		return filepath.Join(l.root, filepath.FromSlash(key))
	}
	return fmt.Sprintf("%s/%s", l.publicURL, key)
}

// Delete removes an object
func (l *LocalStorage) Delete(ctx context.Context, key string) error {
	dest, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Exists checks if an object exists
func (l *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	dest, err := l.path(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(dest); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}
