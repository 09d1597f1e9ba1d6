package drive

import (
	"time"

	driveanalytics "github.com/bitrise-io/go-drivetransfer/analytics"
	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
)

type transferTracker struct {
	tracker analytics.Tracker
	logger  log.Logger
}

func newTransferTracker(envRepo env.Repository, logger log.Logger) transferTracker {
	tracker, err := driveanalytics.NewDefaultTransferTracker(envRepo, logger)
	if err != nil {
		logger.Debugf("Transfer analytics disabled: %s", err)
		tracker = noopTracker{}
	}
	return transferTracker{
		tracker: tracker,
		logger:  logger,
	}
}

func (t *transferTracker) logFileUploaded(uploadTime time.Duration, size int64, partCount int) {
	properties := analytics.Properties{
		"upload_time_s":     uploadTime.Truncate(time.Second).Seconds(),
		"upload_size_bytes": size,
		"part_count":        partCount,
	}
	t.tracker.Enqueue("drive_file_uploaded", properties)
}

func (t *transferTracker) logFileDownloaded(downloadTime time.Duration, size int64) {
	properties := analytics.Properties{
		"download_time_s":     downloadTime.Truncate(time.Second).Seconds(),
		"download_size_bytes": size,
	}
	t.tracker.Enqueue("drive_file_downloaded", properties)
}

func (t *transferTracker) logJobFinished(action string, waitTime time.Duration, err error) {
	properties := analytics.Properties{
		"action":      action,
		"wait_time_s": waitTime.Truncate(time.Second).Seconds(),
		"success":     err == nil,
	}
	if err != nil {
		properties["error"] = err.Error()
	}
	t.tracker.Enqueue("drive_job_finished", properties)
}

func (t *transferTracker) wait() {
	t.tracker.Wait()
}

type noopTracker struct{}

func (noopTracker) Enqueue(string, ...analytics.Properties) {}

func (noopTracker) Wait() {}

func (noopTracker) IsTracking() bool { return false }
