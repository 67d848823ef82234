// Package mockstorage provides a testify-based mock implementation
// of the metadata storage interface used by the service and router packages.
// It is used for unit testing HTTP handlers by simulating storage behavior.
package mockstorage

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/photoapp/internal/models"
	"github.com/patric-chuzhbe/photoapp/internal/user"
)

// StorageMock is a testify mock that implements all interfaces
// used by the service for metadata storage operations.
//
// Use it in handler tests to simulate database behavior.
type StorageMock struct {
	mock.Mock

	// OnGetNumberOfUsers is an optional function field that can be assigned
	// to define custom mock behavior for GetNumberOfUsers in tests.
	//
	// If set, GetNumberOfUsers will delegate to this function instead of
	// using testify's generic mock handler.
	OnGetNumberOfUsers func(ctx context.Context) (int64, error)

	// OnGetNumberOfAssets is an optional function field that can be used
	// to customize the return values of GetNumberOfAssets in tests.
	//
	// If non-nil, the mock implementation will call this function directly.
	OnGetNumberOfAssets func(ctx context.Context) (int64, error)
}

// Ping mocks the pinger interface to simulate a health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// BeginTransaction mocks the beginning of a transaction.
func (m *StorageMock) BeginTransaction() (*sql.Tx, error) {
	args := m.Called()
	tx, _ := args.Get(0).(*sql.Tx)
	return tx, args.Error(1)
}

// CommitTransaction mocks committing a transaction.
func (m *StorageMock) CommitTransaction(tx *sql.Tx) error {
	args := m.Called(tx)
	return args.Error(0)
}

// RollbackTransaction mocks rolling back a transaction.
func (m *StorageMock) RollbackTransaction(tx *sql.Tx) error {
	args := m.Called(tx)
	return args.Error(0)
}

// CreateUser mocks user creation and returns a generated ID.
func (m *StorageMock) CreateUser(ctx context.Context, usr *user.User, tx *sql.Tx) (int64, error) {
	args := m.Called(ctx, usr, tx)
	return args.Get(0).(int64), args.Error(1)
}

// GetUserByID mocks fetching a user by their ID.
func (m *StorageMock) GetUserByID(ctx context.Context, userID int64, tx *sql.Tx) (*user.User, error) {
	args := m.Called(ctx, userID, tx)
	return args.Get(0).(*user.User), args.Error(1)
}

// GetUserByEmail mocks fetching a user by their email.
func (m *StorageMock) GetUserByEmail(ctx context.Context, email string, tx *sql.Tx) (*user.User, error) {
	args := m.Called(ctx, email, tx)
	return args.Get(0).(*user.User), args.Error(1)
}

// GetUsers mocks listing all registered users.
func (m *StorageMock) GetUsers(ctx context.Context) (models.Users, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Users), args.Error(1)
}

// CreateAsset mocks asset metadata insertion and returns a generated ID.
func (m *StorageMock) CreateAsset(ctx context.Context, asset *models.Asset, tx *sql.Tx) (int64, error) {
	args := m.Called(ctx, asset, tx)
	return args.Get(0).(int64), args.Error(1)
}

// GetAssetByID mocks fetching one asset metadata row.
func (m *StorageMock) GetAssetByID(ctx context.Context, assetID int64) (*models.Asset, error) {
	args := m.Called(ctx, assetID)
	asset, _ := args.Get(0).(*models.Asset)
	return asset, args.Error(1)
}

// GetAssets mocks listing all live assets.
func (m *StorageMock) GetAssets(ctx context.Context) (models.Assets, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Assets), args.Error(1)
}

// GetUserAssets mocks listing the live assets of one user.
func (m *StorageMock) GetUserAssets(ctx context.Context, userID int64) (models.Assets, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.Assets), args.Error(1)
}

// GetAssetsForUser mocks resolving a set of asset ids owned by a user.
func (m *StorageMock) GetAssetsForUser(ctx context.Context, userID int64, assetIDs []int64) (models.Assets, error) {
	args := m.Called(ctx, userID, assetIDs)
	return args.Get(0).(models.Assets), args.Error(1)
}

// MarkAssetsDeleted mocks the soft deletion of asset rows.
func (m *StorageMock) MarkAssetsDeleted(ctx context.Context, usersAssets map[int64][]int64) error {
	args := m.Called(ctx, usersAssets)
	return args.Error(0)
}

// Close mocks closing the storage and releasing resources.
func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// GetNumberOfUsers returns the number of users as defined by the mock.
//
// If OnGetNumberOfUsers is non-nil, it will be called to produce the result.
// Otherwise, the method returns 0 and no error by default.
func (m *StorageMock) GetNumberOfUsers(ctx context.Context) (int64, error) {
	if m.OnGetNumberOfUsers != nil {
		return m.OnGetNumberOfUsers(ctx)
	}
	return 0, nil
}

// GetNumberOfAssets returns the number of live assets as defined by the mock.
//
// If OnGetNumberOfAssets is defined, the method will call it and return
// its result. Otherwise, it defaults to returning 0 and no error.
func (m *StorageMock) GetNumberOfAssets(ctx context.Context) (int64, error) {
	if m.OnGetNumberOfAssets != nil {
		return m.OnGetNumberOfAssets(ctx)
	}
	return 0, nil
}
