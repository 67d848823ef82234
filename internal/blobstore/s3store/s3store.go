// Package s3store is an S3-compatible implementation of the blob store built
// on the MinIO client. It works with any S3-compatible provider
// (MinIO, AWS S3, and the like).
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/patric-chuzhbe/photoapp/internal/blobstore"
)

// S3Store stores blobs as objects in a single bucket.
type S3Store struct {
	client *minio.Client
	bucket string
}

// New connects to the S3-compatible endpoint and ensures the bucket exists.
func New(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*S3Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf(
			"in internal/blobstore/s3store/s3store.go/New(): error while `minio.New()` calling: %w",
			err,
		)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf(
			"in internal/blobstore/s3store/s3store.go/New(): error while `client.BucketExists()` calling: %w",
			err,
		)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf(
				"in internal/blobstore/s3store/s3store.go/New(): error while `client.MakeBucket()` calling: %w",
				err,
			)
		}
	}

	return &S3Store{
		client: client,
		bucket: bucket,
	}, nil
}

// Put streams the blob to the bucket under the given key.
func (s *S3Store) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(
		ctx,
		s.bucket,
		key,
		reader,
		size,
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return err
	}

	return nil
}

// Get returns a reader for the object stored under key.
// The object is stat'ed first so a missing key is reported immediately.
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		return nil, s.mapNotFound(err)
	}

	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapNotFound(err)
	}

	return object, nil
}

// Remove deletes the object stored under key.
func (s *S3Store) Remove(ctx context.Context, key string) error {
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		return s.mapNotFound(err)
	}

	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// Count lists the bucket and returns the number of stored objects.
func (s *S3Store) Count(ctx context.Context) (int64, error) {
	var count int64

	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if object.Err != nil {
			return 0, object.Err
		}
		count++
	}

	return count, nil
}

// BucketName returns the bucket the store writes to.
func (s *S3Store) BucketName() string {
	return s.bucket
}

func (s *S3Store) mapNotFound(err error) error {
	var response minio.ErrorResponse
	if errors.As(err, &response) && response.Code == "NoSuchKey" {
		return blobstore.ErrObjectNotExist
	}

	return err
}
