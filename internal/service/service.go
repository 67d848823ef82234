package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"image"
	"io"
	"path/filepath"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"
	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/photoapp/internal/auth"
	"github.com/patric-chuzhbe/photoapp/internal/blobstore"
	"github.com/patric-chuzhbe/photoapp/internal/logger"
	"github.com/patric-chuzhbe/photoapp/internal/models"
	"github.com/patric-chuzhbe/photoapp/internal/user"
)

type transactioner interface {
	BeginTransaction() (*sql.Tx, error)

	RollbackTransaction(transaction *sql.Tx) error

	CommitTransaction(transaction *sql.Tx) error
}

type usersKeeper interface {
	CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (int64, error)

	GetUserByID(ctx context.Context, userID int64, transaction *sql.Tx) (*user.User, error)

	GetUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, error)

	GetUsers(ctx context.Context) (models.Users, error)
}

type assetsKeeper interface {
	CreateAsset(ctx context.Context, asset *models.Asset, transaction *sql.Tx) (int64, error)

	GetAssetByID(ctx context.Context, assetID int64) (*models.Asset, error)

	GetAssets(ctx context.Context) (models.Assets, error)

	GetUserAssets(ctx context.Context, userID int64) (models.Assets, error)

	GetNumberOfUsers(ctx context.Context) (int64, error)

	GetNumberOfAssets(ctx context.Context) (int64, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type storage interface {
	transactioner
	usersKeeper
	assetsKeeper
	pinger
}

type blobKeeper interface {
	Put(ctx context.Context, key string, data io.Reader, size int64, contentType string) error

	Get(ctx context.Context, key string) (io.ReadCloser, error)

	Remove(ctx context.Context, key string) error

	Count(ctx context.Context) (int64, error)

	BucketName() string
}

type assetCache interface {
	GetAsset(ctx context.Context, assetID int64) (*models.Asset, bool)

	SetAsset(ctx context.Context, asset *models.Asset)
}

type assetsRemover interface {
	EnqueueJob(job *models.AssetDeleteJob)
}

// ErrEmailTaken is returned when a registration reuses an existing email.
var ErrEmailTaken = errors.New("a user with this email already exists")

// ErrInvalidCredentials is returned when a login attempt does not match
// a stored user and password pair.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrNoSuchUser is returned when an operation references a missing user.
var ErrNoSuchUser = errors.New("no such user")

// ErrNoSuchAsset is returned when a download references an asset that does
// not exist in the metadata store or the blob store.
var ErrNoSuchAsset = models.ErrNoSuchAsset

// ErrAssetMarkedAsDeleted is returned when a download references an asset
// that has been soft-deleted.
var ErrAssetMarkedAsDeleted = models.ErrAssetDeleted

// Image dimensions are probed from the first bytes of the upload only.
const dimensionsProbeLimit = 512 * 1024

type Service struct {
	db            storage
	blobs         blobKeeper
	cache         assetCache
	assetsRemover assetsRemover
}

// New wires the service over the metadata storage, the blob store, an
// optional metadata cache and the background assets remover.
func New(
	db storage,
	blobs blobKeeper,
	cache assetCache,
	assetsRemover assetsRemover,
) *Service {
	return &Service{
		db:            db,
		blobs:         blobs,
		cache:         cache,
		assetsRemover: assetsRemover,
	}
}

// RegisterUser creates a user with a fresh bucket folder and a bcrypt
// password hash. The email must not belong to an existing user.
func (s *Service) RegisterUser(ctx context.Context, request *models.RegisterUserRequest) (*user.User, error) {
	tx, err := s.db.BeginTransaction()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = s.db.RollbackTransaction(tx)
	}()

	existing, err := s.db.GetUserByEmail(ctx, request.Email, tx)
	if err != nil {
		return nil, err
	}
	if existing.ID != 0 {
		return nil, ErrEmailTaken
	}

	passwordHash, err := auth.HashPassword(request.Password)
	if err != nil {
		return nil, err
	}

	usr := &user.User{
		Email:        request.Email,
		FirstName:    request.FirstName,
		LastName:     request.LastName,
		BucketFolder: uuid.New().String(),
		PasswordHash: passwordHash,
	}

	userID, err := s.db.CreateUser(ctx, usr, tx)
	if err != nil {
		return nil, err
	}
	usr.ID = userID

	if err := s.db.CommitTransaction(tx); err != nil {
		return nil, err
	}

	return usr, nil
}

// Login checks the email and password pair and returns the matching user.
func (s *Service) Login(ctx context.Context, email, password string) (*user.User, error) {
	usr, err := s.db.GetUserByEmail(ctx, email, nil)
	if err != nil {
		return nil, err
	}
	if usr.ID == 0 || !auth.CheckPassword(password, usr.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return usr, nil
}

// UploadAsset stores the photo bytes in the object store under the owner's
// bucket folder and records the metadata row. When the metadata insert
// fails the already written blob is removed again so the store does not
// accumulate orphans.
func (s *Service) UploadAsset(
	ctx context.Context,
	userID int64,
	assetName string,
	contentType string,
	size int64,
	data io.Reader,
) (*models.Asset, error) {
	usr, err := s.db.GetUserByID(ctx, userID, nil)
	if err != nil {
		return nil, err
	}
	if usr.ID == 0 {
		return nil, ErrNoSuchUser
	}

	header, err := io.ReadAll(io.LimitReader(data, dimensionsProbeLimit))
	if err != nil {
		return nil, err
	}
	width, height := probeDimensions(header)

	bucketKey := usr.BucketFolder + "/" + uuid.New().String() + filepath.Ext(assetName)

	body := io.MultiReader(bytes.NewReader(header), data)
	if err := s.blobs.Put(ctx, bucketKey, body, size, contentType); err != nil {
		return nil, err
	}

	asset := &models.Asset{
		UserID:      userID,
		AssetName:   assetName,
		BucketKey:   bucketKey,
		ContentType: contentType,
		Size:        size,
		Width:       width,
		Height:      height,
	}

	assetID, err := s.db.CreateAsset(ctx, asset, nil)
	if err != nil {
		if removeErr := s.blobs.Remove(ctx, bucketKey); removeErr != nil {
			logger.Log.Warnln("removing of the orphan blob failed: ", removeErr)
		}

		return nil, err
	}
	asset.ID = assetID

	return asset, nil
}

// DownloadAsset returns the asset metadata and a reader over the photo
// bytes. The caller owns closing the reader.
func (s *Service) DownloadAsset(ctx context.Context, assetID int64) (*models.Asset, io.ReadCloser, error) {
	asset, found := s.getCachedAsset(ctx, assetID)
	if !found {
		var err error
		asset, err = s.db.GetAssetByID(ctx, assetID)
		if err != nil {
			return nil, nil, err
		}
		s.setCachedAsset(ctx, asset)
	}

	data, err := s.blobs.Get(ctx, asset.BucketKey)
	if err != nil {
		if errors.Is(err, blobstore.ErrObjectNotExist) {
			return nil, nil, ErrNoSuchAsset
		}

		return nil, nil, err
	}

	return asset, data, nil
}

// GetUsers lists all registered users ordered by descending user id.
func (s *Service) GetUsers(ctx context.Context) (models.Users, error) {
	return s.db.GetUsers(ctx)
}

// GetAssets lists all live assets ordered by descending asset id.
func (s *Service) GetAssets(ctx context.Context) (models.Assets, error) {
	return s.db.GetAssets(ctx)
}

// GetUserAssets lists the live assets of one user ordered by descending
// asset id.
func (s *Service) GetUserAssets(ctx context.Context, userID int64) (models.Assets, error) {
	return s.db.GetUserAssets(ctx, userID)
}

// DeleteAssetsAsync enqueues an asset deletion job for background processing.
func (s *Service) DeleteAssetsAsync(ctx context.Context, userID int64, assetIDs models.DeleteAssetsRequest) {
	s.assetsRemover.EnqueueJob(&models.AssetDeleteJob{
		UserID:   userID,
		AssetIDs: funk.Uniq([]int64(assetIDs)).([]int64),
	})
}

// GetStats reports the bucket name, the number of stored objects and the
// user and asset counts.
func (s *Service) GetStats(ctx context.Context) (models.StatsResponse, error) {
	bucketObjects, err := s.blobs.Count(ctx)
	if err != nil {
		return models.StatsResponse{}, err
	}

	users, err := s.db.GetNumberOfUsers(ctx)
	if err != nil {
		return models.StatsResponse{}, err
	}

	assets, err := s.db.GetNumberOfAssets(ctx)
	if err != nil {
		return models.StatsResponse{}, err
	}

	return models.StatsResponse{
		BucketName:    s.blobs.BucketName(),
		BucketObjects: bucketObjects,
		Users:         users,
		Assets:        assets,
	}, nil
}

// GetInternalStats returns the user and asset counts for the trusted
// internal endpoint.
func (s *Service) GetInternalStats(ctx context.Context) (models.InternalStatsResponse, error) {
	users, err := s.db.GetNumberOfUsers(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	assets, err := s.db.GetNumberOfAssets(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	return models.InternalStatsResponse{
		Users:  users,
		Assets: assets,
	}, nil
}

// Ping checks the health of the database/storage layer.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Service) getCachedAsset(ctx context.Context, assetID int64) (*models.Asset, bool) {
	if s.cache == nil {
		return nil, false
	}

	return s.cache.GetAsset(ctx, assetID)
}

func (s *Service) setCachedAsset(ctx context.Context, asset *models.Asset) {
	if s.cache != nil {
		s.cache.SetAsset(ctx, asset)
	}
}

// probeDimensions decodes the image header. Uploads that are not decodable
// images keep zero dimensions instead of being rejected.
func probeDimensions(header []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(header))
	if err != nil {
		return 0, 0
	}

	return cfg.Width, cfg.Height
}
