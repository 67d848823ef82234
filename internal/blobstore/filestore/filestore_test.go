package filestore

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/photoapp/internal/blobstore"
)

func Test(t *testing.T) {
	t.Run("The base filestore package test", func(t *testing.T) {
		theStore, err := New(t.TempDir() + "/blobs")
		require.NoError(t, err)
		require.NotNil(t, theStore)

		payload := []byte("some photo bytes")
		err = theStore.Put(
			context.Background(),
			"some-folder/some-key.jpg",
			bytes.NewReader(payload),
			int64(len(payload)),
			"image/jpeg",
		)
		assert.NoError(t, err, "The `theStore.Put()` should not return error")

		data, err := theStore.Get(context.Background(), "some-folder/some-key.jpg")
		require.NoError(t, err)
		stored, err := io.ReadAll(data)
		assert.NoError(t, err)
		assert.NoError(t, data.Close())
		assert.Equal(t, payload, stored)

		_, err = theStore.Get(context.Background(), "some-folder/unknown.jpg")
		assert.ErrorIs(t, err, blobstore.ErrObjectNotExist)

		count, err := theStore.Count(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, int64(1), count)

		err = theStore.Remove(context.Background(), "some-folder/some-key.jpg")
		assert.NoError(t, err, "The `theStore.Remove()` should not return error")

		err = theStore.Remove(context.Background(), "some-folder/some-key.jpg")
		assert.ErrorIs(t, err, blobstore.ErrObjectNotExist)

		count, err = theStore.Count(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})
}
