package network

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bitrise-io/go-drivetransfer/errkind"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/hashicorp/go-retryablehttp"
)

// DefaultTokenValidity is how long an id token is used before it gets refreshed.
const DefaultTokenValidity = time.Hour

// TokenSource provides the bearer token and the host id (user id) of the drive API calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	HostID(ctx context.Context) (string, error)
}

// Authenticator exchanges a refresh token for short-lived id tokens.
type Authenticator struct {
	httpClient *retryablehttp.Client
	accountURL string
	validity   time.Duration
	now        func() time.Time
	logger     log.Logger

	mu           sync.RWMutex
	refreshToken string
	idToken      string
	hostID       string
	plan         string
	lastRefresh  time.Time
}

// NewAuthenticator ...
func NewAuthenticator(client *retryablehttp.Client, accountURL, refreshToken string, logger log.Logger) *Authenticator {
	return &Authenticator{
		httpClient:   client,
		accountURL:   accountURL,
		validity:     DefaultTokenValidity,
		now:          time.Now,
		logger:       logger,
		refreshToken: refreshToken,
	}
}

// Token returns a valid id token, refreshing it when it is older than the token validity.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	a.mu.RLock()
	token, fresh := a.idToken, a.isFresh()
	a.mu.RUnlock()

	if fresh {
		return token, nil
	}

	if err := a.Refresh(ctx); err != nil {
		return "", err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.idToken, nil
}

// HostID returns the user id the drive uses as host id.
func (a *Authenticator) HostID(ctx context.Context) (string, error) {
	a.mu.RLock()
	hostID := a.hostID
	a.mu.RUnlock()

	if hostID != "" {
		return hostID, nil
	}

	if err := a.Refresh(ctx); err != nil {
		return "", err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.hostID, nil
}

// Plan returns the storage plan of the account, empty before the first refresh.
func (a *Authenticator) Plan() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.plan
}

// Refresh exchanges the refresh token for a new id token.
func (a *Authenticator) Refresh(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Another caller may have refreshed while this one was waiting for the lock.
	if a.isFresh() {
		return nil
	}
	if a.refreshToken == "" {
		return errkind.New("refreshToken", errkind.ErrAuth, fmt.Errorf("refresh token is empty"))
	}

	body, err := json.Marshal(refreshTokenRequest{RefreshToken: a.refreshToken})
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, a.accountURL+"/refreshtoken", body)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return errkind.New("refreshToken", errkind.ErrTransientIO, err)
	}
	defer func(body io.ReadCloser) {
		err := body.Close()
		if err != nil {
			a.logger.Printf(err.Error())
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		err := unwrapError("refreshToken", resp)
		if resp.StatusCode == http.StatusBadRequest {
			// An invalid refresh token is reported as a bad request.
			err = errkind.New("refreshToken", errkind.ErrAuth, err)
		}
		return err
	}

	var response refreshTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return errkind.New("refreshToken", errkind.ErrProtocol, err)
	}
	if response.IDToken == "" || response.UID == "" {
		return errkind.New("refreshToken", errkind.ErrAuth, fmt.Errorf("no id token in response"))
	}

	a.idToken = response.IDToken
	a.hostID = response.UID
	a.plan = response.CustomClaims.Plan
	if response.RefreshToken != "" {
		a.refreshToken = response.RefreshToken
	}
	a.lastRefresh = a.now()

	a.logger.Debugf("Id token refreshed (host id: %s, plan: %s)", a.hostID, a.plan)

	return nil
}

// isFresh must be called with the lock held.
func (a *Authenticator) isFresh() bool {
	return a.idToken != "" && a.now().Sub(a.lastRefresh) < a.validity
}
