package jsondb

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/photoapp/internal/models"
	"github.com/patric-chuzhbe/photoapp/internal/user"
)

const (
	testDBFileName = "db_test.json"
)

func Test(t *testing.T) {
	t.Run("The base jsondb package test", func(t *testing.T) {
		theStorage, err := New(testDBFileName)
		require.NoError(t, err)
		require.NotNil(t, theStorage)
		defer func() {
			err := theStorage.Close()
			require.NoError(t, err)
			err = os.Remove(testDBFileName)
			require.NoError(t, err)
		}()

		userID, err := theStorage.CreateUser(
			context.Background(),
			&user.User{
				Email:        "first@example.com",
				FirstName:    "First",
				LastName:     "User",
				BucketFolder: "folder-1",
			},
			nil,
		)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), userID)

		usr, err := theStorage.GetUserByID(context.Background(), userID, nil)
		assert.NoError(t, err)
		assert.Equal(t, "first@example.com", usr.Email)

		usr, err = theStorage.GetUserByID(context.Background(), 10, nil)
		assert.NoError(t, err)
		assert.Equal(t, int64(0), usr.ID)

		usr, err = theStorage.GetUserByEmail(context.Background(), "first@example.com", nil)
		assert.NoError(t, err)
		assert.Equal(t, userID, usr.ID)

		usr, err = theStorage.GetUserByEmail(context.Background(), "unknown@example.com", nil)
		assert.NoError(t, err)
		assert.Equal(t, int64(0), usr.ID)

		userID2, err := theStorage.CreateUser(
			context.Background(),
			&user.User{Email: "second@example.com"},
			nil,
		)
		assert.NoError(t, err)
		assert.Equal(t, int64(2), userID2)

		users, err := theStorage.GetUsers(context.Background())
		assert.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(
			t,
			userID2,
			users[0].UserID,
			"The `theStorage.GetUsers()` should order users by descending id",
		)

		assetID, err := theStorage.CreateAsset(
			context.Background(),
			&models.Asset{
				UserID:    userID,
				AssetName: "cat.jpg",
				BucketKey: "folder-1/aaa.jpg",
			},
			nil,
		)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), assetID)

		assetID2, err := theStorage.CreateAsset(
			context.Background(),
			&models.Asset{
				UserID:    userID2,
				AssetName: "dog.jpg",
				BucketKey: "folder-2/bbb.jpg",
			},
			nil,
		)
		assert.NoError(t, err)
		assert.Equal(t, int64(2), assetID2)

		asset, err := theStorage.GetAssetByID(context.Background(), assetID)
		assert.NoError(t, err)
		assert.Equal(t, "cat.jpg", asset.AssetName)

		_, err = theStorage.GetAssetByID(context.Background(), 100)
		assert.ErrorIs(t, err, models.ErrNoSuchAsset)

		assets, err := theStorage.GetAssets(context.Background())
		assert.NoError(t, err)
		require.Len(t, assets, 2)
		assert.Equal(
			t,
			assetID2,
			assets[0].ID,
			"The `theStorage.GetAssets()` should order assets by descending id",
		)

		userAssets, err := theStorage.GetUserAssets(context.Background(), userID)
		assert.NoError(t, err)
		require.Len(t, userAssets, 1)
		assert.Equal(t, assetID, userAssets[0].ID)

		forUser, err := theStorage.GetAssetsForUser(
			context.Background(),
			userID,
			[]int64{assetID, assetID2, 100},
		)
		assert.NoError(t, err)
		require.Len(
			t,
			forUser,
			1,
			"The `theStorage.GetAssetsForUser()` should skip assets of other users",
		)

		err = theStorage.MarkAssetsDeleted(
			context.Background(),
			map[int64][]int64{userID: {assetID}},
		)
		assert.NoError(t, err)

		_, err = theStorage.GetAssetByID(context.Background(), assetID)
		assert.ErrorIs(t, err, models.ErrAssetDeleted)

		assets, err = theStorage.GetAssets(context.Background())
		assert.NoError(t, err)
		assert.Len(t, assets, 1)

		numberOfUsers, err := theStorage.GetNumberOfUsers(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, int64(2), numberOfUsers)

		numberOfAssets, err := theStorage.GetNumberOfAssets(context.Background())
		assert.NoError(t, err)
		assert.Equal(
			t,
			int64(1),
			numberOfAssets,
			"The `theStorage.GetNumberOfAssets()` should not count deleted assets",
		)

		err = theStorage.Ping(context.Background())
		assert.NoError(t, err, "The jsondb.Ping() should not return error")

		err = theStorage.Close()
		assert.NoError(t, err, "The jsondb.Close() should not return error")
	})
}
