// Package app initializes and runs the main application service.
// It configures logging, metadata storage, the blob store, authentication,
// the background assets remover and routing, and handles graceful shutdown.
package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/photoapp/internal/assetcache"
	"github.com/patric-chuzhbe/photoapp/internal/assetsremover"
	"github.com/patric-chuzhbe/photoapp/internal/auth"
	"github.com/patric-chuzhbe/photoapp/internal/blobstore"
	"github.com/patric-chuzhbe/photoapp/internal/blobstore/filestore"
	"github.com/patric-chuzhbe/photoapp/internal/blobstore/s3store"
	"github.com/patric-chuzhbe/photoapp/internal/config"
	"github.com/patric-chuzhbe/photoapp/internal/db/jsondb"
	"github.com/patric-chuzhbe/photoapp/internal/db/memorystorage"
	"github.com/patric-chuzhbe/photoapp/internal/db/postgresdb"
	"github.com/patric-chuzhbe/photoapp/internal/db/storage"
	"github.com/patric-chuzhbe/photoapp/internal/ipchecker"
	"github.com/patric-chuzhbe/photoapp/internal/logger"
	"github.com/patric-chuzhbe/photoapp/internal/models"
	"github.com/patric-chuzhbe/photoapp/internal/router"
	"github.com/patric-chuzhbe/photoapp/internal/service"
)

// App encapsulates the configuration, HTTP handler, storage backends,
// and background services (such as the assets remover) needed to run
// the photo service.
type App struct {
	cfg               *config.Config
	db                storage.Storage
	cache             *assetcache.Cache
	assetsRemover     *assetsremover.AssetsRemover
	stopAssetsRemover context.CancelFunc
	httpHandler       http.Handler
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up the metadata storage and the blob store
// - setting up the background assets remover
// - setting up the router and middleware
func New() (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New()
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	blobs, err := getBlobStore(app.cfg)
	if err != nil {
		return nil, err
	}

	if app.cfg.RedisAddr != "" {
		app.cache, err = assetcache.New(
			context.Background(),
			app.cfg.RedisAddr,
			app.cfg.RedisPassword,
			app.cfg.RedisDB,
			app.cfg.AssetCacheTTL,
		)
		if err != nil {
			return nil, err
		}
	}

	tokenSigningSecretKey, err := base64.URLEncoding.DecodeString(app.cfg.AuthTokenSigningSecretKey)
	if err != nil {
		return nil, err
	}

	app.assetsRemover = assetsremover.New(
		app.db,
		blobs,
		app.cache,
		app.cfg.ChannelCapacity,
		app.cfg.DelayBetweenQueueFetches,
	)
	assetsRemoverRunCtx, stopAssetsRemover := context.WithCancel(context.Background())
	app.stopAssetsRemover = stopAssetsRemover

	app.assetsRemover.Run(assetsRemoverRunCtx)
	app.assetsRemover.ListenErrors(func(err error) {
		logger.Log.Debugln("Error passed from the `app.assetsRemover.ListenErrors()`:", zap.Error(err))
	})

	theAuth := auth.New(
		app.db,
		app.cfg.AuthCookieName,
		tokenSigningSecretKey,
		app.cfg.AuthTokenTTL,
	)

	theIPChecker, err := ipchecker.New(app.cfg.TrustedSubnet)
	if err != nil {
		return nil, err
	}

	app.httpHandler = router.New(
		service.New(
			app.db,
			blobs,
			app.cache,
			app.assetsRemover,
		),
		theAuth,
		theAuth,
		theIPChecker,
	)

	return app, nil
}

// Run starts the HTTP server with graceful shutdown support.
// It listens for system signals and cleans up resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:    a.cfg.RunAddr,
		Handler: a.httpHandler,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Saving database and exiting...")
		a.stopAssetsRemover()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		if a.cache != nil {
			if err := a.cache.Close(); err != nil {
				logger.Log.Debugln("Error closing the asset cache:", zap.Error(err))
			}
		}

		return a.db.Close()

	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
			cfg.MigrationsDir,
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New()
}

func getBlobStore(cfg *config.Config) (blobstore.Store, error) {
	if cfg.S3Endpoint != "" {
		return s3store.New(
			context.Background(),
			cfg.S3Endpoint,
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			cfg.S3Bucket,
			cfg.S3UseSSL,
		)
	}

	return filestore.New(cfg.BlobStorePath)
}
