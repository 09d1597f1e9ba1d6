package drive

import (
	"fmt"
	"time"

	"github.com/bitrise-io/go-drivetransfer/drive/network"
	"github.com/bitrise-io/go-drivetransfer/drive/network/chunkuploader"
	"github.com/bitrise-io/go-drivetransfer/drive/network/jobwatch"
	"github.com/bitrise-io/go-drivetransfer/envconf"
)

// DefaultDownloadConcurrency is the number of connections a download uses.
const DefaultDownloadConcurrency = 16

// Config of a drive Client.
type Config struct {
	RefreshToken  envconf.Secret `env:"DRIVE_REFRESH_TOKEN,required"`
	FileAPIURL    string         `env:"DRIVE_FILE_API_URL"`
	AccountAPIURL string         `env:"DRIVE_ACCOUNT_API_URL"`

	UploadConcurrency int    `env:"DRIVE_UPLOAD_CONCURRENCY"`
	MinChunkSizeBytes uint64 `env:"DRIVE_MIN_CHUNK_SIZE_BYTES"`
	// MaxRetryPerChunk limits the attempts of a single part upload, 0 means unlimited.
	MaxRetryPerChunk int           `env:"DRIVE_MAX_RETRY_PER_CHUNK"`
	HungThreshold    time.Duration `env:"DRIVE_HUNG_THRESHOLD"`

	JobPollInterval time.Duration `env:"DRIVE_JOB_POLL_INTERVAL"`
	// JobTimeout bounds waiting for a server side job, 0 means no limit.
	JobTimeout time.Duration `env:"DRIVE_JOB_TIMEOUT"`

	DownloadConcurrency uint `env:"DRIVE_DOWNLOAD_CONCURRENCY"`
	Verbose             bool `env:"DRIVE_VERBOSE"`
}

// NewConfigFromEnv parses the config from env vars and fills in the defaults.
func NewConfigFromEnv(envGetter envconf.EnvGetter) (Config, error) {
	var config Config
	if err := envconf.NewInputParser(envGetter).Parse(&config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()
	if config.Verbose {
		envconf.Print(config)
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.FileAPIURL == "" {
		c.FileAPIURL = network.DefaultFileAPIURL
	}
	if c.AccountAPIURL == "" {
		c.AccountAPIURL = network.DefaultAccountAPIURL
	}
	if c.UploadConcurrency <= 0 {
		c.UploadConcurrency = chunkuploader.DefaultConcurrency
	}
	if c.MinChunkSizeBytes == 0 {
		c.MinChunkSizeBytes = chunkuploader.DefaultMinChunkSize
	}
	if c.HungThreshold <= 0 {
		c.HungThreshold = chunkuploader.DefaultConfig().HungThreshold
	}
	if c.JobPollInterval <= 0 {
		c.JobPollInterval = jobwatch.DefaultPollInterval
	}
	if c.DownloadConcurrency == 0 {
		c.DownloadConcurrency = DefaultDownloadConcurrency
	}
}

func (c Config) uploaderConfig() chunkuploader.Config {
	retry := chunkuploader.DefaultRetryPolicy()
	retry.MaxAttempts = c.MaxRetryPerChunk

	return chunkuploader.Config{
		Concurrency:   c.UploadConcurrency,
		Retry:         retry,
		HungThreshold: c.HungThreshold,
	}
}

func (c Config) watcherConfig() jobwatch.Config {
	return jobwatch.Config{
		PollInterval: c.JobPollInterval,
		Timeout:      c.JobTimeout,
	}
}
