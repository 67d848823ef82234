package models

import (
	"errors"
	"time"
)

type RegisterUserRequest struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Password  string `json:"password" validate:"required,min=8"`
}

type RegisterUserResponse struct {
	UserID int64  `json:"user_id"`
	Token  string `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// Asset is a stored photo: the metadata row plus the key of the blob
// in the object store.
type Asset struct {
	ID          int64     `json:"asset_id"`
	UserID      int64     `json:"user_id"`
	AssetName   string    `json:"asset_name"`
	BucketKey   string    `json:"bucket_key"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size,omitempty"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	IsDeleted   bool      `json:"-"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

type Assets []Asset

type UploadAssetResponse struct {
	AssetID   int64  `json:"asset_id"`
	BucketKey string `json:"bucket_key"`
}

type UserInfo struct {
	UserID       int64  `json:"user_id"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	BucketFolder string `json:"bucket_folder"`
}

type Users []UserInfo

type StatsResponse struct {
	BucketName    string `json:"bucket_name"`
	BucketObjects int64  `json:"bucket_objects"`
	Users         int64  `json:"users"`
	Assets        int64  `json:"assets"`
}

type InternalStatsResponse struct {
	Users  int64 `json:"users"`
	Assets int64 `json:"assets"`
}

type DeleteAssetsRequest []int64

// AssetDeleteJob is a unit of work for the background assets remover.
type AssetDeleteJob struct {
	UserID   int64
	AssetIDs []int64
}

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

var (
	ErrNoSuchAsset  = errors.New("no such asset")
	ErrAssetDeleted = errors.New("the asset is marked as deleted")
)
