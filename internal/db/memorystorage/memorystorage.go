package memorystorage

import (
	"context"

	"github.com/patric-chuzhbe/photoapp/internal/db/jsondb"
	"github.com/patric-chuzhbe/photoapp/internal/models"
	"github.com/patric-chuzhbe/photoapp/internal/user"
)

// MemoryStorage keeps the whole dataset in memory and never touches disk.
// It reuses the jsondb cache with Close and Ping overridden to no-ops.
type MemoryStorage struct {
	*jsondb.JSONDB
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: &jsondb.JSONDB{
			Cache: jsondb.CacheStruct{
				Users:       map[int64]*user.User{},
				NextUserID:  1,
				Assets:      map[int64]*models.Asset{},
				NextAssetID: 1,
			},
		},
	}, nil
}

func (theStorage *MemoryStorage) Close() error {
	return nil
}

func (theStorage *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}
