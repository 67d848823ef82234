// Package filestore is a local-directory implementation of the blob store.
// It is the fallback backend when no object store endpoint is configured,
// mirroring the metadata layer's postgres -> file -> memory ladder.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/patric-chuzhbe/photoapp/internal/blobstore"
)

// FileStore stores blobs as plain files under a root directory.
// Object keys may contain forward slashes; they become subdirectories.
type FileStore struct {
	root string
}

// New creates the root directory if needed and returns a FileStore.
func New(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf(
			"in internal/blobstore/filestore/filestore.go/New(): error while `os.MkdirAll()` calling: %w",
			err,
		)
	}

	return &FileStore{root: root}, nil
}

// Put writes the blob to <root>/<key>, creating parent directories on demand.
func (s *FileStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	path := s.keyToPath(key)

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		_ = os.Remove(path)

		return err
	}

	return file.Close()
}

// Get opens the blob stored under key.
func (s *FileStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(s.keyToPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, blobstore.ErrObjectNotExist
		}

		return nil, err
	}

	return file, nil
}

// Remove deletes the blob stored under key.
func (s *FileStore) Remove(ctx context.Context, key string) error {
	err := os.Remove(s.keyToPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return blobstore.ErrObjectNotExist
		}

		return err
	}

	return nil
}

// Count walks the root directory and counts stored files.
func (s *FileStore) Count(ctx context.Context) (int64, error) {
	var count int64

	err := filepath.WalkDir(s.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			count++
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

// BucketName returns the root directory the store writes to.
func (s *FileStore) BucketName() string {
	return s.root
}

func (s *FileStore) keyToPath(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}
