package storage

import (
	"context"
	"database/sql"

	"github.com/patric-chuzhbe/photoapp/internal/models"
	"github.com/patric-chuzhbe/photoapp/internal/user"
)

type Storage interface {
	CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (int64, error)

	GetUserByID(ctx context.Context, userID int64, transaction *sql.Tx) (*user.User, error)

	GetUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, error)

	GetUsers(ctx context.Context) (models.Users, error)

	CreateAsset(ctx context.Context, asset *models.Asset, transaction *sql.Tx) (int64, error)

	GetAssetByID(ctx context.Context, assetID int64) (*models.Asset, error)

	GetAssets(ctx context.Context) (models.Assets, error)

	GetUserAssets(ctx context.Context, userID int64) (models.Assets, error)

	GetAssetsForUser(ctx context.Context, userID int64, assetIDs []int64) (models.Assets, error)

	MarkAssetsDeleted(ctx context.Context, usersAssets map[int64][]int64) error

	GetNumberOfUsers(ctx context.Context) (int64, error)

	GetNumberOfAssets(ctx context.Context) (int64, error)

	BeginTransaction() (*sql.Tx, error)

	RollbackTransaction(transaction *sql.Tx) error

	CommitTransaction(transaction *sql.Tx) error

	Ping(ctx context.Context) error

	Close() error
}
