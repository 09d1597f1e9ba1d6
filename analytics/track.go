package analytics

import (
	"fmt"

	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
)

type TrackerFactory func(log.Logger, ...analytics.Properties) analytics.Tracker

const (
	SessionIDEnvKey = "DRIVE_SESSION_ID"
	SessionID       = "session_id"
	ClientEnvKey    = "DRIVE_CLIENT_NAME"
	Client          = "client"
)

// NewTransferTracker creates a tracker whose events belong to the transfer session
// identified by the DRIVE_SESSION_ID env var. Tracking is only enabled when it is set.
func NewTransferTracker(repository env.Repository, logger log.Logger, trackerFactory TrackerFactory) (analytics.Tracker, error) {
	sessionID := repository.Get(SessionIDEnvKey)
	if sessionID == "" {
		return nil, fmt.Errorf("no transfer session ID found")
	}

	p := analytics.Properties{SessionID: sessionID}
	if client := repository.Get(ClientEnvKey); client != "" {
		p[Client] = client
	}
	return trackerFactory(logger, p), nil
}

func NewDefaultTransferTracker(repository env.Repository, logger log.Logger) (analytics.Tracker, error) {
	return NewTransferTracker(repository, logger, func(l log.Logger, p ...analytics.Properties) analytics.Tracker {
		return analytics.NewDefaultTracker(l, repository, p...)
	})
}
