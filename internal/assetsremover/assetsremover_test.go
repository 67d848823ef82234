package assetsremover

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/photoapp/internal/blobstore"
	"github.com/patric-chuzhbe/photoapp/internal/blobstore/filestore"
	"github.com/patric-chuzhbe/photoapp/internal/db/memorystorage"
	"github.com/patric-chuzhbe/photoapp/internal/logger"
	"github.com/patric-chuzhbe/photoapp/internal/models"
	"github.com/patric-chuzhbe/photoapp/internal/user"
)

func TestAssetsRemover(t *testing.T) {
	err := logger.Init("debug")
	require.NoError(t, err)

	theStorage, err := memorystorage.New()
	require.NoError(t, err)

	theBlobs, err := filestore.New(t.TempDir() + "/blobs")
	require.NoError(t, err)

	userID, err := theStorage.CreateUser(
		context.Background(),
		&user.User{Email: "some@example.com", BucketFolder: "some-folder"},
		nil,
	)
	require.NoError(t, err)

	payload := []byte("some photo bytes")
	assetIDs := make([]int64, 0, 2)
	for _, bucketKey := range []string{"some-folder/one.jpg", "some-folder/two.jpg"} {
		err = theBlobs.Put(
			context.Background(),
			bucketKey,
			bytes.NewReader(payload),
			int64(len(payload)),
			"image/jpeg",
		)
		require.NoError(t, err)

		assetID, err := theStorage.CreateAsset(
			context.Background(),
			&models.Asset{UserID: userID, AssetName: "photo.jpg", BucketKey: bucketKey},
			nil,
		)
		require.NoError(t, err)
		assetIDs = append(assetIDs, assetID)
	}

	theRemover := New(theStorage, theBlobs, nil, 10, 20*time.Millisecond)
	runCtx, stopRemover := context.WithCancel(context.Background())
	defer stopRemover()

	theRemover.Run(runCtx)
	theRemover.ListenErrors(func(err error) {
		t.Errorf("unexpected error from the remover: %v", err)
	})

	theRemover.EnqueueJob(&models.AssetDeleteJob{
		UserID:   userID,
		AssetIDs: assetIDs,
	})

	require.Eventually(t, func() bool {
		_, err := theStorage.GetAssetByID(context.Background(), assetIDs[0])

		return errors.Is(err, models.ErrAssetDeleted)
	}, 2*time.Second, 10*time.Millisecond, "the assets should be soft-deleted by the worker")

	for _, bucketKey := range []string{"some-folder/one.jpg", "some-folder/two.jpg"} {
		_, err := theBlobs.Get(context.Background(), bucketKey)
		assert.ErrorIs(t, err, blobstore.ErrObjectNotExist)
	}
}

type failingBlobRemover struct {
	inner   *filestore.FileStore
	failKey string
}

func (r *failingBlobRemover) Remove(ctx context.Context, key string) error {
	if key == r.failKey {
		return errors.New("the blob store is not available for this key")
	}

	return r.inner.Remove(ctx, key)
}

func TestAssetsRemoverToleratesPerItemBlobErrors(t *testing.T) {
	err := logger.Init("debug")
	require.NoError(t, err)

	theStorage, err := memorystorage.New()
	require.NoError(t, err)

	theBlobs, err := filestore.New(t.TempDir() + "/blobs")
	require.NoError(t, err)

	userID, err := theStorage.CreateUser(
		context.Background(),
		&user.User{Email: "some@example.com", BucketFolder: "some-folder"},
		nil,
	)
	require.NoError(t, err)

	payload := []byte("some photo bytes")
	assetIDs := make([]int64, 0, 2)
	for _, bucketKey := range []string{"some-folder/good.jpg", "some-folder/bad.jpg"} {
		err = theBlobs.Put(
			context.Background(),
			bucketKey,
			bytes.NewReader(payload),
			int64(len(payload)),
			"image/jpeg",
		)
		require.NoError(t, err)

		assetID, err := theStorage.CreateAsset(
			context.Background(),
			&models.Asset{UserID: userID, AssetName: "photo.jpg", BucketKey: bucketKey},
			nil,
		)
		require.NoError(t, err)
		assetIDs = append(assetIDs, assetID)
	}

	theRemover := New(
		theStorage,
		&failingBlobRemover{inner: theBlobs, failKey: "some-folder/bad.jpg"},
		nil,
		10,
		20*time.Millisecond,
	)
	runCtx, stopRemover := context.WithCancel(context.Background())
	defer stopRemover()

	reportedErrors := make(chan error, 10)
	theRemover.Run(runCtx)
	theRemover.ListenErrors(func(err error) {
		reportedErrors <- err
	})

	theRemover.EnqueueJob(&models.AssetDeleteJob{
		UserID:   userID,
		AssetIDs: assetIDs,
	})

	require.Eventually(t, func() bool {
		_, err := theStorage.GetAssetByID(context.Background(), assetIDs[0])

		return errors.Is(err, models.ErrAssetDeleted)
	}, 2*time.Second, 10*time.Millisecond, "the healthy item should be soft-deleted despite the failing one")

	asset, err := theStorage.GetAssetByID(context.Background(), assetIDs[1])
	require.NoError(t, err, "the item with the failing blob should stay live")
	assert.False(t, asset.IsDeleted)

	select {
	case reportedError := <-reportedErrors:
		assert.Error(t, reportedError)
	case <-time.After(2 * time.Second):
		t.Error("the blob failure should reach the error listener")
	}
}

func TestAssetsRemoverSkipsForeignAssets(t *testing.T) {
	err := logger.Init("debug")
	require.NoError(t, err)

	theStorage, err := memorystorage.New()
	require.NoError(t, err)

	theBlobs, err := filestore.New(t.TempDir() + "/blobs")
	require.NoError(t, err)

	ownerID, err := theStorage.CreateUser(context.Background(), &user.User{Email: "owner@example.com"}, nil)
	require.NoError(t, err)
	strangerID, err := theStorage.CreateUser(context.Background(), &user.User{Email: "stranger@example.com"}, nil)
	require.NoError(t, err)

	payload := []byte("some photo bytes")
	err = theBlobs.Put(
		context.Background(),
		"owner-folder/one.jpg",
		bytes.NewReader(payload),
		int64(len(payload)),
		"image/jpeg",
	)
	require.NoError(t, err)

	assetID, err := theStorage.CreateAsset(
		context.Background(),
		&models.Asset{UserID: ownerID, AssetName: "photo.jpg", BucketKey: "owner-folder/one.jpg"},
		nil,
	)
	require.NoError(t, err)

	theRemover := New(theStorage, theBlobs, nil, 10, 20*time.Millisecond)
	runCtx, stopRemover := context.WithCancel(context.Background())
	defer stopRemover()

	theRemover.Run(runCtx)

	// A deletion request from a user who does not own the asset.
	theRemover.EnqueueJob(&models.AssetDeleteJob{
		UserID:   strangerID,
		AssetIDs: []int64{assetID},
	})

	time.Sleep(100 * time.Millisecond)

	asset, err := theStorage.GetAssetByID(context.Background(), assetID)
	require.NoError(t, err, "the asset of another user should stay untouched")
	assert.False(t, asset.IsDeleted)

	_, err = theBlobs.Get(context.Background(), "owner-folder/one.jpg")
	assert.NoError(t, err)
}
