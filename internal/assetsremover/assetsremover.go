// Package assetsremover implements the background deletion worker.
// Delete requests are enqueued by the HTTP layer and processed in batches:
// the worker removes the blobs from the object store, soft-deletes the
// metadata rows, and drops the affected cache entries.
package assetsremover

import (
	"context"
	"errors"
	"time"

	"github.com/patric-chuzhbe/photoapp/internal/blobstore"
	"github.com/patric-chuzhbe/photoapp/internal/logger"
	"github.com/patric-chuzhbe/photoapp/internal/models"
)

type assetsKeeper interface {
	GetAssetsForUser(ctx context.Context, userID int64, assetIDs []int64) (models.Assets, error)
	MarkAssetsDeleted(ctx context.Context, usersAssets map[int64][]int64) error
}

type blobRemover interface {
	Remove(ctx context.Context, key string) error
}

type cacheInvalidator interface {
	InvalidateAssets(ctx context.Context, assetIDs []int64)
}

type task struct {
	userID  int64
	assetID int64
}

// AssetsRemover batches queued asset deletions and applies them on a ticker.
type AssetsRemover struct {
	queue                    chan *task
	db                       assetsKeeper
	blobs                    blobRemover
	cache                    cacheInvalidator
	delayBetweenQueueFetches time.Duration
	errorChannel             chan error
}

// New builds an AssetsRemover. The cache may be nil when no redis is
// configured.
func New(
	db assetsKeeper,
	blobs blobRemover,
	cache cacheInvalidator,
	channelCapacity int,
	delayBetweenQueueFetches time.Duration,
) *AssetsRemover {
	return &AssetsRemover{
		db:                       db,
		blobs:                    blobs,
		cache:                    cache,
		queue:                    make(chan *task, channelCapacity),
		delayBetweenQueueFetches: delayBetweenQueueFetches,
		errorChannel:             make(chan error, channelCapacity),
	}
}

// EnqueueJob splits a delete job into per-asset tasks and queues them.
func (r *AssetsRemover) EnqueueJob(job *models.AssetDeleteJob) {
	for _, assetID := range job.AssetIDs {
		r.queue <- &task{
			userID:  job.UserID,
			assetID: assetID,
		}
	}
}

// ListenErrors invokes the callback for every error the worker reports.
func (r *AssetsRemover) ListenErrors(callback func(error)) {
	go func() {
		for err := range r.errorChannel {
			callback(err)
		}
	}()
}

// Run starts the worker goroutine. It stops when the context is canceled.
func (r *AssetsRemover) Run(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.delayBetweenQueueFetches)
		defer ticker.Stop()

		var tasks []task

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-r.queue:
				tasks = append(tasks, *t)
			case <-ticker.C:
				if len(tasks) == 0 {
					continue
				}
				if r.processBatch(ctx, collectAssetsByUser(tasks)) {
					logger.Log.Infof("processed removing of %d assets", len(tasks))
					tasks = nil
				}
			}
		}
	}()
}

// processBatch removes blobs and soft-deletes metadata for the batch.
// A blob that is already gone is not an error; any other per-item blob
// failure is reported to the error channel and the item is dropped from
// the batch, leaving its row live for a later delete request.
func (r *AssetsRemover) processBatch(ctx context.Context, usersAssets map[int64][]int64) bool {
	removed := map[int64][]int64{}
	var removedIDs []int64

	for userID, assetIDs := range usersAssets {
		assets, err := r.db.GetAssetsForUser(ctx, userID, assetIDs)
		if err != nil {
			r.errorChannel <- err
			return false
		}

		for _, asset := range assets {
			err := r.blobs.Remove(ctx, asset.BucketKey)
			if err != nil && !errors.Is(err, blobstore.ErrObjectNotExist) {
				r.errorChannel <- err
				continue
			}

			removed[userID] = append(removed[userID], asset.ID)
			removedIDs = append(removedIDs, asset.ID)
		}
	}

	if len(removed) == 0 {
		return true
	}

	if err := r.db.MarkAssetsDeleted(ctx, removed); err != nil {
		r.errorChannel <- err
		return false
	}

	if r.cache != nil {
		r.cache.InvalidateAssets(ctx, removedIDs)
	}

	return true
}

func collectAssetsByUser(tasks []task) map[int64][]int64 {
	result := map[int64][]int64{}
	for _, t := range tasks {
		result[t.userID] = append(result[t.userID], t.assetID)
	}

	return result
}
