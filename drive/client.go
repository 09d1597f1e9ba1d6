// Package drive transfers files to and from the cloud drive and manages the files stored there.
//
// Uploads are split into chunks which are uploaded concurrently as parts of an S3 multipart upload,
// then the upload is finalized and the drive's processing of it is awaited as a job.
package drive

import (
	"context"
	"fmt"
	"time"

	"github.com/bitrise-io/go-drivetransfer/drive/network"
	"github.com/bitrise-io/go-drivetransfer/drive/network/jobwatch"
	"github.com/bitrise-io/go-drivetransfer/drive/network/multipart"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/hashicorp/go-retryablehttp"
)

// S3ClientFactory creates the object store client of a single upload.
type S3ClientFactory func(ctx context.Context, creds multipart.Credentials) (multipart.S3API, error)

// Client ...
type Client struct {
	config     Config
	httpClient *retryablehttp.Client
	auth       *network.Authenticator
	api        *network.APIClient
	watcher    *jobwatch.Watcher
	s3Factory  S3ClientFactory
	source     SourceResolver
	tracker    transferTracker
	logger     log.Logger

	pathChecker  pathutil.PathChecker
	pathModifier pathutil.PathModifier
}

// NewClientFromEnv creates a Client configured by DRIVE_* env vars.
func NewClientFromEnv(logger log.Logger) (*Client, error) {
	envRepo := env.NewRepository()
	config, err := NewConfigFromEnv(envRepo)
	if err != nil {
		return nil, err
	}
	return NewClient(config, envRepo, logger, nil), nil
}

// NewClient creates a new drive client. `s3Factory` can be nil, unless you want to provide a custom object store client.
func NewClient(config Config, envRepo env.Repository, logger log.Logger, s3Factory S3ClientFactory) *Client {
	config.applyDefaults()
	if config.Verbose {
		logger.EnableDebugLog(true)
	}

	httpClient := network.NewHTTPClient(logger)
	auth := network.NewAuthenticator(httpClient, config.AccountAPIURL, string(config.RefreshToken), logger)
	api := network.NewAPIClient(httpClient, config.FileAPIURL, auth, logger)

	if s3Factory == nil {
		s3Factory = func(ctx context.Context, creds multipart.Credentials) (multipart.S3API, error) {
			return multipart.NewS3Client(ctx, creds, logger)
		}
	}

	return &Client{
		config:       config,
		httpClient:   httpClient,
		auth:         auth,
		api:          api,
		watcher:      jobwatch.NewWatcher(api, config.watcherConfig(), logger),
		s3Factory:    s3Factory,
		source:       NewSourceResolver(logger),
		tracker:      newTransferTracker(envRepo, logger),
		logger:       logger,
		pathChecker:  pathutil.NewPathChecker(),
		pathModifier: pathutil.NewPathModifier(),
	}
}

// Close flushes the pending analytics events. The client must not be used afterwards.
func (c *Client) Close() {
	c.tracker.wait()
}

// Plan returns the storage plan of the account.
func (c *Client) Plan(ctx context.Context) (string, error) {
	if _, err := c.auth.Token(ctx); err != nil {
		return "", err
	}
	return c.auth.Plan(), nil
}

// AwaitJob blocks until the server side job identified by key finished.
func (c *Client) AwaitJob(ctx context.Context, key string) error {
	return c.awaitJob(ctx, "job", key)
}

func (c *Client) awaitJob(ctx context.Context, action, key string) error {
	c.logger.Debugf("Waiting for %s job %s", action, key)

	startTime := time.Now()
	err := c.watcher.Await(ctx, key)
	c.tracker.logJobFinished(action, time.Since(startTime), err)
	if err != nil {
		return fmt.Errorf("%s job failed: %w", action, err)
	}

	c.logger.Debugf("%s job %s finished in %s", action, key, time.Since(startTime).Round(time.Millisecond))
	return nil
}
