// Package blobstore defines the interface for object storage operations.
// Implementations are swapped by configuration: the S3-compatible client for
// bucket-style stores and the local filestore when no endpoint is configured.
package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotExist is returned by Get and Remove when no object is stored
// under the requested key.
var ErrObjectNotExist = errors.New("object does not exist")

// Store is the object store the service uploads photo blobs to.
type Store interface {
	// Put streams data to the store under the given key.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Get returns a reader for the object stored under key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Remove deletes the object stored under key.
	Remove(ctx context.Context, key string) error

	// Count returns the number of objects currently in the store.
	Count(ctx context.Context) (int64, error)

	// BucketName returns the bucket (or root directory) the store writes to.
	BucketName() string
}
