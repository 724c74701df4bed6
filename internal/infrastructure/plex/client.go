// Package plex talks to the plex.tv API for share management. The API has
// accumulated three generations of endpoints with different shapes; this
// client probes for the working variant and caches what it finds.
package plex

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"plexward/internal/application/settings"
	"plexward/internal/shared/logger"
)

const (
	plexTVBaseURL  = "https://plex.tv"
	requestTimeout = 30 * time.Second
	// Maximum response body size (4MB; user lists on large servers are big)
	maxResponseSize = 4 << 20

	clientIdentifier = "plexward"
	productName      = "Plexward"
)

var (
	// ErrNotConfigured means no Plex token is present.
	ErrNotConfigured = stderrors.New("plex integration not configured")
	// ErrNoSuchServer means the configured identifier matches no resource.
	ErrNoSuchServer = stderrors.New("no matching plex server found")
	// ErrAmbiguousServer means auto-detection found multiple candidate servers.
	ErrAmbiguousServer = stderrors.New("multiple plex servers found, set server_identifier")
	// ErrNotOwned means the resolved server is not owned by the token's account.
	ErrNotOwned = stderrors.New("plex server is not owned by this account")
	// ErrRejected means plex.tv refused the request (auth or validation).
	ErrRejected = stderrors.New("rejected by plex")
	// ErrNoIdentifier means revocation had neither an account id nor an email.
	ErrNoIdentifier = stderrors.New("no plex account id or email to act on")
	// ErrNoSections means an invite was attempted with zero library sections.
	ErrNoSections = stderrors.New("no library sections configured")
)

// serverDescriptor is the resolved identity of the target server.
type serverDescriptor struct {
	MachineIdentifier string
	// LegacyServerID is the numeric id of the /api/servers entry. Empty on
	// servers too new to appear there.
	LegacyServerID string
	Owned          bool
}

// Client is the plex.tv API client. The token is resolved through the
// settings provider on every call so admin updates take effect immediately.
type Client struct {
	provider   *settings.Provider
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	logger     logger.Interface

	mu sync.Mutex
	// serverCache keys on token+machineIdentifier; a token change drops
	// cached descriptors.
	serverCache map[string]*serverDescriptor
	// userListPath is the first probe path that answered non-404, reset on
	// 404 or auth failure.
	userListPath string
}

func NewClient(provider *settings.Provider, log logger.Interface) *Client {
	return &Client{
		provider: provider,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:    "plex",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		logger:      log,
		serverCache: make(map[string]*serverDescriptor),
	}
}

// Configured reports whether a token is present.
func (c *Client) Configured(ctx context.Context) bool {
	cfg := c.provider.GetPlexConfig(ctx)
	return cfg.Configured()
}

// VerifyCredentials checks the token and resolves the target server.
func (c *Client) VerifyCredentials(ctx context.Context) error {
	_, err := c.descriptor(ctx)
	return err
}

// do performs one plex.tv request with the standard headers. A JSON payload
// is marshaled when non-nil.
func (c *Client) do(ctx context.Context, method, urlStr, token string, payload any) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request payload: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Plex-Token", token)
	req.Header.Set("X-Plex-Client-Identifier", clientIdentifier)
	req.Header.Set("X-Plex-Product", productName)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("plex request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read plex response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func isAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}
