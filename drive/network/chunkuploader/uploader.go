package chunkuploader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bitrise-io/go-drivetransfer/errkind"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Uploader handles parallel part uploads with retry and hung detection.
type Uploader struct {
	config Config
	logger log.Logger
	stats  *Stats
}

// New creates a new Uploader with the given configuration.
func New(config Config, logger log.Logger) *Uploader {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}

	return &Uploader{
		config: config,
		logger: logger,
		stats:  NewStats(),
	}
}

// Upload uploads every chunk of the provider to the store, at most Config.Concurrency at a time.
// The returned parts are in completion order; the first permanent failure cancels the remaining
// uploads and fails the whole transfer.
func (u *Uploader) Upload(ctx context.Context, store Store, provider ChunkProvider, progress *Progress) ([]Part, error) {
	plan := provider.Plan()
	if plan.ChunkCount == 0 {
		return nil, errkind.New("upload", errkind.ErrInvalidInput, fmt.Errorf("nothing to upload"))
	}

	u.logger.Debugf("Uploading %s in %d parts of %s (concurrency: %d)",
		units.HumanSize(float64(plan.TotalSize)), plan.ChunkCount, units.HumanSize(float64(plan.ChunkSize)), u.config.Concurrency)

	sem := semaphore.NewWeighted(int64(u.config.Concurrency))
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	parts := make([]Part, 0, plan.ChunkCount)

	for i := 0; i < plan.ChunkCount; i++ {
		// The permit is taken before the goroutine starts, so at most Concurrency goroutines exist.
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}

		index := i
		g.Go(func() error {
			defer sem.Release(1)

			part, err := u.uploadPartWithRetry(gctx, store, provider, index)
			if err != nil {
				return err
			}

			mu.Lock()
			parts = append(parts, part)
			mu.Unlock()

			if progress != nil {
				progress.Add(part.Length)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("upload cancelled: %w", err)
	}

	u.logger.Debugf("All %d parts uploaded [avg=%v] [throughput=%s/s]",
		len(parts), u.stats.Average().Round(time.Millisecond), units.HumanSize(u.stats.Throughput()))

	return parts, nil
}

// Stats returns the upload statistics.
func (u *Uploader) Stats() *Stats {
	return u.stats
}

func (u *Uploader) uploadPartWithRetry(ctx context.Context, store Store, provider ChunkProvider, index int) (Part, error) {
	plan := provider.Plan()
	partNumber := plan.PartNumber(index)

	body, err := provider.GetChunk(index)
	if err != nil {
		return Part{}, fmt.Errorf("get chunk %d: %w", partNumber, err)
	}

	retry := u.config.Retry
	var uploadErr error
	attempt := 0
	for ; !retry.exhausted(attempt); attempt++ {
		if err := ctx.Err(); err != nil {
			return Part{}, fmt.Errorf("part %d upload cancelled: %w", partNumber, err)
		}

		u.logger.Debugf("Uploading part %d/%d (attempt %d) [finished=%d] [avg=%v]",
			partNumber, plan.ChunkCount, attempt+1,
			u.stats.FinishedCount(), u.stats.Average().Round(time.Second))

		start := time.Now()
		partCtx, cancelPart := context.WithCancel(ctx)

		// Start hung detection goroutine (except on last attempt)
		if u.config.HungThreshold > 0 && !retry.exhausted(attempt+1) {
			go u.detectHungUpload(partCtx, cancelPart, start, partNumber)
		}

		var etag string
		etag, uploadErr = store.UploadPart(partCtx, partNumber, body)
		hung := partCtx.Err() != nil && ctx.Err() == nil
		cancelPart()

		if uploadErr == nil && etag == "" {
			uploadErr = errkind.New("uploadPart", errkind.ErrTransientIO, fmt.Errorf("no ETag in response"))
		}

		if uploadErr == nil {
			took := time.Since(start)
			u.stats.Update(took, uint64(len(body)))
			u.logger.Infof("Part %d uploaded successfully in %v, ETag: %s", partNumber, took.Round(time.Millisecond), etag)
			return Part{
				Number: partNumber,
				ETag:   etag,
				Offset: plan.Offset(index),
				Length: uint64(len(body)),
			}, nil
		}

		if err := ctx.Err(); err != nil {
			return Part{}, fmt.Errorf("part %d upload cancelled: %w", partNumber, err)
		}
		if !hung && errkind.IsPermanent(uploadErr) {
			return Part{}, fmt.Errorf("upload part %d: %w", partNumber, uploadErr)
		}

		backoff := retry.Backoff(attempt)
		if hung {
			u.logger.Warnf("Part %d attempt %d cancelled (hung), retrying after %v", partNumber, attempt+1, backoff)
		} else {
			u.logger.Warnf("Part %d attempt %d failed: %v, retrying after %v", partNumber, attempt+1, uploadErr, backoff)
		}

		if err := sleepContext(ctx, backoff); err != nil {
			return Part{}, fmt.Errorf("part %d upload cancelled: %w", partNumber, err)
		}
	}

	return Part{}, fmt.Errorf("part %d failed after %d attempts: %w", partNumber, attempt, uploadErr)
}

func (u *Uploader) detectHungUpload(ctx context.Context, cancel context.CancelFunc, start time.Time, partNumber int32) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if u.stats.FinishedCount() > 0 {
				elapsed := time.Since(start)
				avg := u.stats.Average()
				if elapsed-avg > u.config.HungThreshold {
					u.logger.Warnf("Found hung part upload (part %d); canceling request after %s (avg: %s)",
						partNumber, elapsed.Round(time.Second), avg.Round(time.Second))
					cancel()
					return
				}
			}
		}
	}
}
