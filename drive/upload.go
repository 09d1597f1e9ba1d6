package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitrise-io/go-drivetransfer/drive/network"
	"github.com/bitrise-io/go-drivetransfer/drive/network/chunkuploader"
	"github.com/bitrise-io/go-drivetransfer/drive/network/multipart"
	"github.com/bitrise-io/go-drivetransfer/errkind"
	"github.com/docker/go-units"
)

// Upload uploads data as the file name into the drive folder destination ("" is the root folder)
// and waits until the drive processed it. reporter may be nil.
func (c *Client) Upload(ctx context.Context, name string, data []byte, destination string, reporter chunkuploader.ProgressReporter) error {
	if err := validateUploadName(name); err != nil {
		return err
	}

	var provider chunkuploader.ChunkProvider
	if len(data) > 0 {
		plan, err := chunkuploader.NewPlan(uint64(len(data)), c.config.MinChunkSizeBytes)
		if err != nil {
			return err
		}
		provider, err = chunkuploader.NewMemoryChunkProvider(data, plan)
		if err != nil {
			return err
		}
	}

	return c.upload(ctx, name, uint64(len(data)), destination, provider, reporter)
}

// UploadFile uploads the file at localPath into the drive folder destination.
// localPath can also be a file:// or http(s):// URL, remote files are downloaded first.
func (c *Client) UploadFile(ctx context.Context, localPath, destination string, reporter chunkuploader.ProgressReporter) error {
	pth, err := c.source.LocalPath(ctx, localPath)
	if err != nil {
		return errkind.New("uploadFile", errkind.ErrInvalidInput, err)
	}

	exists, err := c.pathChecker.IsPathExists(pth)
	if err != nil {
		return err
	}
	if !exists {
		return errkind.New("uploadFile", errkind.ErrInvalidInput, fmt.Errorf("file does not exist: %s", pth))
	}

	info, err := os.Stat(pth)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return errkind.New("uploadFile", errkind.ErrInvalidInput, fmt.Errorf("%s is a directory", pth))
	}

	name := filepath.Base(pth)
	if info.Size() == 0 {
		return c.upload(ctx, name, 0, destination, nil, reporter)
	}

	provider, err := chunkuploader.NewFileChunkProvider(pth, c.config.MinChunkSizeBytes)
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Close(); err != nil {
			c.logger.Warnf("Failed to close %s: %s", pth, err)
		}
	}()

	return c.upload(ctx, name, provider.Plan().TotalSize, destination, provider, reporter)
}

// upload sends the chunks of provider to the object store location the drive assigns to name.
// A nil provider means an empty file.
func (c *Client) upload(ctx context.Context, name string, size uint64, destination string, provider chunkuploader.ChunkProvider, reporter chunkuploader.ProgressReporter) error {
	c.logger.Infof("Uploading %s (%s) to /%s", name, units.HumanSizeWithPrecision(float64(size), 3), destination)
	startTime := time.Now()

	location, err := c.api.CheckUpload(ctx, network.CheckUploadRequest{
		Path: destination,
		File: []network.UploadFile{{Path: name, Size: int64(size)}},
	})
	if err != nil {
		return fmt.Errorf("failed to prepare upload: %w", err)
	}

	creds, err := c.api.GetUploadCredentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to get upload credentials: %w", err)
	}

	store, err := c.s3Factory(ctx, multipart.Credentials{
		Region:          location.Region,
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		SessionToken:    creds.SessionToken,
	})
	if err != nil {
		return fmt.Errorf("failed to create object store client: %w", err)
	}

	key := location.Prefix + location.File[0].Path
	c.logger.Debugf("Upload location: %s/%s (upload id: %s)", location.Bucket, key, location.UploadID)

	partCount := 1
	if provider == nil {
		if err := multipart.PutObject(ctx, store, location.Bucket, key, nil); err != nil {
			return fmt.Errorf("failed to upload empty file: %w", err)
		}
		if reporter != nil {
			reporter(0, 0)
		}
	} else {
		partCount, err = c.uploadParts(ctx, store, location.Bucket, key, provider, reporter)
		if err != nil {
			return err
		}
	}

	if err := c.awaitJob(ctx, "upload", location.UploadID); err != nil {
		return err
	}

	uploadTime := time.Since(startTime).Round(time.Second)
	c.tracker.logFileUploaded(uploadTime, int64(size), partCount)
	c.logger.Donef("Uploaded %s in %s", name, uploadTime)

	return nil
}

// uploadParts runs a multipart upload and returns the number of uploaded parts.
// The multipart upload is aborted on any failure.
func (c *Client) uploadParts(ctx context.Context, store multipart.S3API, bucket, key string, provider chunkuploader.ChunkProvider, reporter chunkuploader.ProgressReporter) (int, error) {
	session, err := multipart.Create(ctx, store, bucket, key, c.logger)
	if err != nil {
		return 0, fmt.Errorf("failed to create multipart upload: %w", err)
	}

	uploader := chunkuploader.New(c.config.uploaderConfig(), c.logger)
	parts, err := uploader.Upload(ctx, session, provider, chunkuploader.NewProgress(provider.Plan().TotalSize, reporter))
	if err != nil {
		err = fmt.Errorf("failed to upload parts: %w", err)
	} else if err = session.Complete(ctx, parts); err != nil {
		err = fmt.Errorf("failed to complete multipart upload: %w", err)
	}

	if err != nil {
		if abortErr := session.Abort(context.WithoutCancel(ctx)); abortErr != nil {
			c.logger.Warnf("Failed to abort multipart upload: %s", abortErr)
		}
		return 0, err
	}

	return len(parts), nil
}

func validateUploadName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errkind.New("upload", errkind.ErrInvalidInput, fmt.Errorf("file name must not be empty"))
	}
	if strings.HasSuffix(name, "/") {
		return errkind.New("upload", errkind.ErrInvalidInput, fmt.Errorf("file name must not end with /"))
	}
	return nil
}
