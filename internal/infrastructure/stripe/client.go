// Package stripe is a minimal REST client for the subscription endpoints and
// a webhook signature verifier compatible with Stripe's v1 signing scheme.
package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"plexward/internal/application/settings"
	"plexward/internal/shared/biztime"
	"plexward/internal/shared/errors"
	"plexward/internal/shared/logger"
)

const (
	apiBaseURL     = "https://api.stripe.com"
	requestTimeout = 30 * time.Second
	// Maximum response body size (1MB)
	maxResponseSize = 1 << 20
	// DefaultTolerance bounds the age of a signed webhook payload.
	DefaultTolerance = 5 * time.Minute
)

// Event is a decoded webhook event envelope. Data holds the raw object so
// callers decode only the event types they care about.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// Subscription is the subset of the Stripe subscription resource the
// reconciler consumes.
type Subscription struct {
	ID                string
	Status            string
	CustomerID        string
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  *time.Time
}

// Client talks to the Stripe REST API. Credentials are resolved through the
// settings provider on every call so admin updates take effect immediately.
type Client struct {
	provider   *settings.Provider
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	logger     logger.Interface
}

func NewClient(provider *settings.Provider, log logger.Interface) *Client {
	return &Client{
		provider: provider,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:    "stripe",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		logger: log,
	}
}

// ConstructWebhookEvent verifies the Stripe-Signature header against the raw
// payload and decodes the event envelope. The signed payload is
// "<timestamp>.<payload>" and any of the v1 signatures may match.
func ConstructWebhookEvent(payload []byte, sigHeader, secret string, tolerance time.Duration, now time.Time) (*Event, error) {
	if secret == "" {
		return nil, errors.NewNotConfiguredError("stripe webhook secret not configured")
	}
	if sigHeader == "" {
		return nil, errors.NewRejectedError("missing stripe signature header")
	}

	var timestamp int64
	var signatures []string
	for _, part := range strings.Split(sigHeader, ",") {
		pair := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(pair) != 2 {
			continue
		}
		switch pair[0] {
		case "t":
			ts, err := strconv.ParseInt(pair[1], 10, 64)
			if err != nil {
				return nil, errors.NewRejectedError("invalid stripe signature timestamp")
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, pair[1])
		}
	}
	if timestamp == 0 || len(signatures) == 0 {
		return nil, errors.NewRejectedError("malformed stripe signature header")
	}

	if tolerance > 0 {
		age := now.Sub(time.Unix(timestamp, 0))
		if age > tolerance || age < -tolerance {
			return nil, errors.NewRejectedError("stripe signature timestamp outside tolerance")
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			var event Event
			if err := json.Unmarshal(payload, &event); err != nil {
				return nil, errors.NewBadRequestError("failed to decode stripe event", err.Error())
			}
			return &event, nil
		}
	}
	return nil, errors.NewRejectedError("no matching stripe signature")
}

// ConstructWebhookEvent verifies and decodes an incoming webhook using the
// configured webhook secret.
func (c *Client) ConstructWebhookEvent(ctx context.Context, payload []byte, sigHeader string) (*Event, error) {
	cfg := c.provider.GetStripeConfig(ctx)
	return ConstructWebhookEvent(payload, sigHeader, cfg.WebhookSecret, DefaultTolerance, biztime.NowUTC())
}

// GetSubscription fetches a subscription by ID.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/v1/subscriptions/"+url.PathEscape(subscriptionID), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, errors.NewNotFoundError(fmt.Sprintf("subscription %s not found", subscriptionID))
	}
	if status != http.StatusOK {
		return nil, errors.NewRejectedError(fmt.Sprintf("stripe returned status %d", status), string(body))
	}

	var raw struct {
		ID                string `json:"id"`
		Status            string `json:"status"`
		Customer          string `json:"customer"`
		CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
		CurrentPeriodEnd  int64  `json:"current_period_end"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode subscription response: %w", err)
	}

	sub := &Subscription{
		ID:                raw.ID,
		Status:            raw.Status,
		CustomerID:        raw.Customer,
		CancelAtPeriodEnd: raw.CancelAtPeriodEnd,
	}
	if raw.CurrentPeriodEnd > 0 {
		end := time.Unix(raw.CurrentPeriodEnd, 0).UTC()
		sub.CurrentPeriodEnd = &end
	}
	return sub, nil
}

// CreateCheckoutSession starts a subscription checkout for the configured
// price and returns the hosted checkout URL.
func (c *Client) CreateCheckoutSession(ctx context.Context, customerEmail, successURL, cancelURL string) (string, error) {
	cfg := c.provider.GetStripeConfig(ctx)
	if cfg.PriceID == "" {
		return "", errors.NewNotConfiguredError("stripe price id not configured")
	}

	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("line_items[0][price]", cfg.PriceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", successURL)
	form.Set("cancel_url", cancelURL)
	if customerEmail != "" {
		form.Set("customer_email", customerEmail)
	}

	body, status, err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", form)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", errors.NewRejectedError(fmt.Sprintf("checkout session create returned status %d", status), string(body))
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode checkout session response: %w", err)
	}
	if result.URL == "" {
		return "", errors.NewRejectedError("checkout session response has no url")
	}
	return result.URL, nil
}

// CancelSubscription cancels a subscription immediately.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) error {
	body, status, err := c.do(ctx, http.MethodDelete, "/v1/subscriptions/"+url.PathEscape(subscriptionID), nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return errors.NewNotFoundError(fmt.Sprintf("subscription %s not found", subscriptionID))
	}
	if status != http.StatusOK {
		return errors.NewRejectedError(fmt.Sprintf("subscription cancel returned status %d", status), string(body))
	}
	return nil
}

// VerifyCredentials checks the secret key with a lightweight balance read.
func (c *Client) VerifyCredentials(ctx context.Context) error {
	body, status, err := c.do(ctx, http.MethodGet, "/v1/balance", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return errors.NewRejectedError(fmt.Sprintf("stripe credential check returned status %d", status), string(body))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values) ([]byte, int, error) {
	cfg := c.provider.GetStripeConfig(ctx)
	if !cfg.Configured() {
		return nil, 0, errors.NewNotConfiguredError("stripe credentials not configured")
	}

	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, apiBaseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.SecretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, 0, errors.NewTransportError("stripe request failed", err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, errors.NewTransportError("failed to read stripe response", err.Error())
	}
	return body, resp.StatusCode, nil
}

// AmountToMajorUnits converts a minor-unit amount to major units for the
// common two-decimal currencies.
func AmountToMajorUnits(amount int64) float64 {
	return float64(amount) / 100
}
