package chunkuploader

import (
	"context"
	"time"
)

// DefaultConcurrency is the number of parts uploaded in parallel by default.
const DefaultConcurrency = 20

// RetryPolicy controls how a failed part upload is repeated.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts per part, 0 means no limit.
	MaxAttempts int

	// InitialBackoff is the wait after the first failed attempt, doubled after every further failure.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between two attempts.
	MaxBackoff time.Duration
}

// DefaultRetryPolicy retries transient failures until they succeed or the context is done.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    0,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// Backoff returns the wait after the given (0-based) failed attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	backoff := p.InitialBackoff
	for i := 0; i < attempt; i++ {
		if p.MaxBackoff > 0 && backoff >= p.MaxBackoff {
			break
		}
		backoff *= 2
	}
	if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
		backoff = p.MaxBackoff
	}
	return backoff
}

// exhausted reports whether attempt (0-based) is over the limit.
func (p RetryPolicy) exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt >= p.MaxAttempts
}

// Config holds configuration for the chunk uploader.
type Config struct {
	// Concurrency is the maximum number of parallel part uploads.
	// Default: 20
	Concurrency int

	// Retry is applied to every part independently.
	Retry RetryPolicy

	// HungThreshold is the duration after which a part upload is considered hung
	// if it exceeds the average upload time by this amount. 0 disables hung detection.
	// Default: 30 seconds
	HungThreshold time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:   DefaultConcurrency,
		Retry:         DefaultRetryPolicy(),
		HungThreshold: 30 * time.Second,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
