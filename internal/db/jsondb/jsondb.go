// Package jsondb is a JSON-file-backed implementation of the storage
// interface. The whole dataset lives in memory and is flushed to the file on
// Close. Transactions are no-ops: every mutation is applied immediately.
package jsondb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/patric-chuzhbe/photoapp/internal/models"
	"github.com/patric-chuzhbe/photoapp/internal/user"
)

type JSONDB struct {
	fileName string
	mu       sync.RWMutex
	Cache    CacheStruct
}

type CacheStruct struct {
	Users       map[int64]*user.User
	NextUserID  int64
	Assets      map[int64]*models.Asset
	NextAssetID int64
}

// New loads the database file, initializing it first when it does not exist.
func New(fileName string) (*JSONDB, error) {
	db := &JSONDB{
		fileName: fileName,
		Cache:    CacheStruct{},
	}

	err := parseJSONFile(db.fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := initDBFile(fileName); err != nil {
			return nil, err
		}
		if err := parseJSONFile(db.fileName, &db.Cache); err != nil {
			return nil, err
		}
	}

	return db, nil
}

func (db *JSONDB) CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	userID := db.Cache.NextUserID
	db.Cache.NextUserID++

	stored := *usr
	stored.ID = userID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	db.Cache.Users[userID] = &stored

	return userID, nil
}

func (db *JSONDB) GetUserByID(ctx context.Context, userID int64, transaction *sql.Tx) (*user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	usr, found := db.Cache.Users[userID]
	if !found {
		return &user.User{ID: 0}, nil
	}

	copied := *usr

	return &copied, nil
}

func (db *JSONDB) GetUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, usr := range db.Cache.Users {
		if usr.Email == email {
			copied := *usr

			return &copied, nil
		}
	}

	return &user.User{ID: 0}, nil
}

func (db *JSONDB) GetUsers(ctx context.Context) (models.Users, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := models.Users{}
	for _, usr := range db.Cache.Users {
		result = append(result, models.UserInfo{
			UserID:       usr.ID,
			Email:        usr.Email,
			FirstName:    usr.FirstName,
			LastName:     usr.LastName,
			BucketFolder: usr.BucketFolder,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UserID > result[j].UserID
	})

	return result, nil
}

func (db *JSONDB) CreateAsset(ctx context.Context, asset *models.Asset, transaction *sql.Tx) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	assetID := db.Cache.NextAssetID
	db.Cache.NextAssetID++

	stored := *asset
	stored.ID = assetID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	db.Cache.Assets[assetID] = &stored

	return assetID, nil
}

func (db *JSONDB) GetAssetByID(ctx context.Context, assetID int64) (*models.Asset, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	asset, found := db.Cache.Assets[assetID]
	if !found {
		return nil, models.ErrNoSuchAsset
	}

	copied := *asset
	if copied.IsDeleted {
		return &copied, models.ErrAssetDeleted
	}

	return &copied, nil
}

func (db *JSONDB) GetAssets(ctx context.Context) (models.Assets, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.collectAssets(func(asset *models.Asset) bool {
		return !asset.IsDeleted
	}), nil
}

func (db *JSONDB) GetUserAssets(ctx context.Context, userID int64) (models.Assets, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.collectAssets(func(asset *models.Asset) bool {
		return asset.UserID == userID && !asset.IsDeleted
	}), nil
}

func (db *JSONDB) GetAssetsForUser(ctx context.Context, userID int64, assetIDs []int64) (models.Assets, error) {
	requested := make(map[int64]struct{}, len(assetIDs))
	for _, assetID := range assetIDs {
		requested[assetID] = struct{}{}
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.collectAssets(func(asset *models.Asset) bool {
		_, wanted := requested[asset.ID]

		return wanted && asset.UserID == userID && !asset.IsDeleted
	}), nil
}

func (db *JSONDB) MarkAssetsDeleted(ctx context.Context, usersAssets map[int64][]int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for userID, assetIDs := range usersAssets {
		for _, assetID := range assetIDs {
			asset, found := db.Cache.Assets[assetID]
			if found && asset.UserID == userID {
				asset.IsDeleted = true
			}
		}
	}

	return nil
}

func (db *JSONDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Users)), nil
}

func (db *JSONDB) GetNumberOfAssets(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var count int64
	for _, asset := range db.Cache.Assets {
		if !asset.IsDeleted {
			count++
		}
	}

	return count, nil
}

func (db *JSONDB) BeginTransaction() (*sql.Tx, error) {
	return nil, nil
}

func (db *JSONDB) CommitTransaction(transaction *sql.Tx) error {
	return nil
}

func (db *JSONDB) RollbackTransaction(transaction *sql.Tx) error {
	return nil
}

func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

// Close flushes the in-memory dataset back to the database file.
func (db *JSONDB) Close() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return writeToJSONFile(db.fileName, db.Cache)
}

// collectAssets must be called with the mutex held.
func (db *JSONDB) collectAssets(keep func(*models.Asset) bool) models.Assets {
	result := models.Assets{}
	for _, asset := range db.Cache.Assets {
		if keep(asset) {
			result = append(result, *asset)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID > result[j].ID
	})

	return result
}

func initDBFile(fileName string) error {
	dbFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(dbFile, `{
	"Users": {},
	"NextUserID": 1,
	"Assets": {},
	"NextAssetID": 1
}`)
	if err != nil {
		return err
	}
	return dbFile.Close()
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %s", err)
	}

	file, err2 := os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err2 != nil {
		return fmt.Errorf("error opening file: %s", err2)
	}
	defer file.Close()

	_, err = file.Write(jsonData)
	if err != nil {
		return fmt.Errorf("error writing to file: %s", err)
	}

	return nil
}

func parseJSONFile(fileName string, cacheMap *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)

	return decoder.Decode(cacheMap)
}
