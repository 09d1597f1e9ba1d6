// Package jobwatch waits for server side jobs (upload, move, copy, delete, rename) to finish.
package jobwatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitrise-io/go-drivetransfer/errkind"
	"github.com/bitrise-io/go-utils/v2/log"
)

// DefaultPollInterval ...
const DefaultPollInterval = 200 * time.Millisecond

// ErrTimeout is returned when a job does not finish within Config.Timeout.
var ErrTimeout = errors.New("timed out waiting for job")

// State of a server side job.
type State string

// Job states.
const (
	StateRunning  State = "running"
	StateComplete State = "complete"
	StateError    State = "error"
)

// Job is a single status report of a server side job.
type Job struct {
	Key    string
	Action string
	State  State
	Detail string
}

// StatusChecker queries the state of a job.
type StatusChecker interface {
	CheckJobStatus(ctx context.Context, key string) (Job, error)
}

// JobFailedError is returned when the job ended in error state.
type JobFailedError struct {
	Key    string
	Action string
	Detail string
}

// Error ...
func (e *JobFailedError) Error() string {
	msg := fmt.Sprintf("%s job %s failed", e.Action, e.Key)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is makes the error match errkind.ErrJobFailed.
func (e *JobFailedError) Is(target error) bool {
	return target == errkind.ErrJobFailed
}

// Config ...
type Config struct {
	// PollInterval is the wait between two status checks.
	// Default: 200ms
	PollInterval time.Duration

	// Timeout bounds the whole wait, 0 means wait until the context is done.
	Timeout time.Duration
}

// Watcher polls a StatusChecker until a job reaches a terminal state.
type Watcher struct {
	checker StatusChecker
	config  Config
	clock   Clock
	logger  log.Logger
}

// NewWatcher ...
func NewWatcher(checker StatusChecker, config Config, logger log.Logger) *Watcher {
	return NewWatcherWithClock(checker, config, NewRealClock(), logger)
}

// NewWatcherWithClock creates a Watcher that waits using the given clock.
func NewWatcherWithClock(checker StatusChecker, config Config, clock Clock, logger log.Logger) *Watcher {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}

	return &Watcher{
		checker: checker,
		config:  config,
		clock:   clock,
		logger:  logger,
	}
}

// Await blocks until the job identified by key is complete.
// A job in error state results in a *JobFailedError, unknown states are treated as running.
func (w *Watcher) Await(ctx context.Context, key string) error {
	if key == "" {
		return errkind.New("awaitJob", errkind.ErrInvalidInput, fmt.Errorf("job key must not be empty"))
	}

	var deadline <-chan time.Time
	if w.config.Timeout > 0 {
		deadline = w.clock.After(w.config.Timeout)
	}

	start := w.clock.Now()
	for polls := 1; ; polls++ {
		job, err := w.checker.CheckJobStatus(ctx, key)
		switch {
		case err != nil && ctx.Err() != nil:
			return fmt.Errorf("await job %s: %w", key, ctx.Err())
		case err != nil && errkind.IsPermanent(err):
			return fmt.Errorf("check job %s: %w", key, err)
		case err != nil:
			w.logger.Warnf("Failed to check job %s (poll %d): %s", key, polls, err)
		case job.State == StateComplete:
			w.logger.Debugf("Job %s (%s) completed after %d polls in %s", key, job.Action, polls, w.clock.Now().Sub(start).Round(time.Millisecond))
			return nil
		case job.State == StateError:
			return &JobFailedError{Key: key, Action: job.Action, Detail: job.Detail}
		case job.State != StateRunning:
			w.logger.Debugf("Job %s reported unknown state %q, treating it as running", key, job.State)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("await job %s: %w", key, ctx.Err())
		case <-deadline:
			return fmt.Errorf("await job %s after %s: %w", key, w.config.Timeout, ErrTimeout)
		case <-w.clock.After(w.config.PollInterval):
		}
	}
}
