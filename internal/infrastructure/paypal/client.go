// Package paypal is a minimal REST client for the subscription and webhook
// verification endpoints. Only the fields the reconciler consumes are decoded.
package paypal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"plexward/internal/application/settings"
	"plexward/internal/shared/biztime"
	"plexward/internal/shared/errors"
	"plexward/internal/shared/logger"
)

const (
	requestTimeout = 30 * time.Second
	// Maximum response body size (1MB)
	maxResponseSize = 1 << 20
	// Refresh the OAuth token this long before its reported expiry.
	tokenExpirySlack = 60 * time.Second
)

// Subscription is the subset of the PayPal subscription resource the
// reconciler consumes.
type Subscription struct {
	ID              string
	Status          string
	PlanID          string
	SubscriberEmail string
	SubscriberName  string
	NextBillingTime *time.Time
	LastPaymentTime *time.Time
}

// WebhookHeaders carries the signature headers of an incoming webhook request.
type WebhookHeaders struct {
	TransmissionID   string
	TransmissionTime string
	TransmissionSig  string
	CertURL          string
	AuthAlgo         string
}

// Client talks to the PayPal REST API. Credentials are resolved through the
// settings provider on every call so admin updates take effect immediately.
type Client struct {
	provider   *settings.Provider
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	logger     logger.Interface

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
	// tokenClientID invalidates the cached token when credentials change.
	tokenClientID string
}

func NewClient(provider *settings.Provider, log logger.Interface) *Client {
	return &Client{
		provider: provider,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:    "paypal",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		logger: log,
	}
}

// GetSubscription fetches a subscription by ID.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	body, status, err := c.doAuthorized(ctx, http.MethodGet, "/v1/billing/subscriptions/"+url.PathEscape(subscriptionID), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, errors.NewNotFoundError(fmt.Sprintf("subscription %s not found", subscriptionID))
	}
	if status != http.StatusOK {
		return nil, errors.NewRejectedError(fmt.Sprintf("paypal returned status %d", status), string(body))
	}

	var raw struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		PlanID     string `json:"plan_id"`
		Subscriber struct {
			EmailAddress string `json:"email_address"`
			Name         struct {
				GivenName string `json:"given_name"`
				Surname   string `json:"surname"`
			} `json:"name"`
		} `json:"subscriber"`
		BillingInfo struct {
			NextBillingTime string `json:"next_billing_time"`
			LastPayment     struct {
				Time string `json:"time"`
			} `json:"last_payment"`
		} `json:"billing_info"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode subscription response: %w", err)
	}

	name := strings.TrimSpace(raw.Subscriber.Name.GivenName + " " + raw.Subscriber.Name.Surname)
	return &Subscription{
		ID:              raw.ID,
		Status:          raw.Status,
		PlanID:          raw.PlanID,
		SubscriberEmail: raw.Subscriber.EmailAddress,
		SubscriberName:  name,
		NextBillingTime: biztime.ParseISO(raw.BillingInfo.NextBillingTime),
		LastPaymentTime: biztime.ParseISO(raw.BillingInfo.LastPayment.Time),
	}, nil
}

// VerifyWebhookSignature asks PayPal to verify an incoming webhook delivery.
// A missing webhook ID fails closed: deliveries cannot be trusted without it.
func (c *Client) VerifyWebhookSignature(ctx context.Context, headers WebhookHeaders, rawEvent []byte) error {
	cfg := c.provider.GetPayPalConfig(ctx)
	if cfg.WebhookID == "" {
		return errors.NewNotConfiguredError("paypal webhook id not configured, cannot verify deliveries")
	}

	payload := map[string]any{
		"transmission_id":   headers.TransmissionID,
		"transmission_time": headers.TransmissionTime,
		"transmission_sig":  headers.TransmissionSig,
		"cert_url":          headers.CertURL,
		"auth_algo":         headers.AuthAlgo,
		"webhook_id":        cfg.WebhookID,
		"webhook_event":     json.RawMessage(rawEvent),
	}
	body, status, err := c.doAuthorized(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return errors.NewRejectedError(fmt.Sprintf("webhook verification returned status %d", status), string(body))
	}

	var result struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to decode verification response: %w", err)
	}
	if result.VerificationStatus != "SUCCESS" {
		return errors.NewRejectedError("webhook signature verification failed", result.VerificationStatus)
	}
	return nil
}

// CreateSubscription starts a subscription approval flow for the configured
// plan and returns the approval URL the prospect must visit.
func (c *Client) CreateSubscription(ctx context.Context, subscriberEmail, returnURL, cancelURL string) (string, error) {
	cfg := c.provider.GetPayPalConfig(ctx)
	if cfg.PlanID == "" {
		return "", errors.NewNotConfiguredError("paypal plan id not configured")
	}

	payload := map[string]any{
		"plan_id": cfg.PlanID,
		"subscriber": map[string]any{
			"email_address": subscriberEmail,
		},
		"application_context": map[string]any{
			"return_url": returnURL,
			"cancel_url": cancelURL,
		},
	}
	body, status, err := c.doAuthorized(ctx, http.MethodPost, "/v1/billing/subscriptions", payload)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return "", errors.NewRejectedError(fmt.Sprintf("subscription create returned status %d", status), string(body))
	}

	var result struct {
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode subscription create response: %w", err)
	}
	for _, link := range result.Links {
		if link.Rel == "approve" {
			return link.Href, nil
		}
	}
	return "", errors.NewRejectedError("subscription create response has no approval link")
}

// EnsurePlan returns the configured billing plan, creating a product and a
// monthly plan when none is configured yet. The returned plan id is not
// persisted here; the caller stores it in settings.
func (c *Client) EnsurePlan(ctx context.Context, price, currency, productID string) (string, error) {
	cfg := c.provider.GetPayPalConfig(ctx)
	if cfg.PlanID != "" {
		return cfg.PlanID, nil
	}

	if productID == "" {
		payload := map[string]any{
			"name": "Media server membership",
			"type": "SERVICE",
		}
		body, status, err := c.doAuthorized(ctx, http.MethodPost, "/v1/catalogs/products", payload)
		if err != nil {
			return "", err
		}
		if status != http.StatusCreated && status != http.StatusOK {
			return "", errors.NewRejectedError(fmt.Sprintf("product create returned status %d", status), string(body))
		}
		var product struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(body, &product); err != nil {
			return "", fmt.Errorf("failed to decode product response: %w", err)
		}
		productID = product.ID
	}

	payload := map[string]any{
		"product_id": productID,
		"name":       "Monthly membership",
		"status":     "ACTIVE",
		"billing_cycles": []map[string]any{
			{
				"frequency": map[string]any{
					"interval_unit":  "MONTH",
					"interval_count": 1,
				},
				"tenure_type":  "REGULAR",
				"sequence":     1,
				"total_cycles": 0,
				"pricing_scheme": map[string]any{
					"fixed_price": map[string]any{
						"value":         price,
						"currency_code": currency,
					},
				},
			},
		},
		"payment_preferences": map[string]any{
			"auto_bill_outstanding":     true,
			"payment_failure_threshold": 3,
		},
	}
	body, status, err := c.doAuthorized(ctx, http.MethodPost, "/v1/billing/plans", payload)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return "", errors.NewRejectedError(fmt.Sprintf("plan create returned status %d", status), string(body))
	}
	var plan struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &plan); err != nil {
		return "", fmt.Errorf("failed to decode plan response: %w", err)
	}
	return plan.ID, nil
}

// VerifyCredentials checks that the configured credentials can obtain an
// OAuth token.
func (c *Client) VerifyCredentials(ctx context.Context) error {
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
	_, err := c.token(ctx)
	return err
}

// doAuthorized performs an authenticated request and returns the body and
// status code. Transport failures come back as transport errors.
func (c *Client) doAuthorized(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	cfg := c.provider.GetPayPalConfig(ctx)
	if !cfg.Configured() {
		return nil, 0, errors.NewNotConfiguredError("paypal credentials not configured")
	}

	token, err := c.token(ctx)
	if err != nil {
		return nil, 0, err
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request payload: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.BaseURL()+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, 0, errors.NewTransportError("paypal request failed", err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, errors.NewTransportError("failed to read paypal response", err.Error())
	}
	return body, resp.StatusCode, nil
}

// token returns a cached OAuth access token, refreshing when expired.
func (c *Client) token(ctx context.Context) (string, error) {
	cfg := c.provider.GetPayPalConfig(ctx)
	if !cfg.Configured() {
		return "", errors.NewNotConfiguredError("paypal credentials not configured")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := biztime.NowUTC()
	if c.accessToken != "" && c.tokenClientID == cfg.ClientID && now.Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL()+"/v1/oauth2/token", form)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(cfg.ClientID + ":" + cfg.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.httpClient.Do(req)
	})
	if err != nil {
		return "", errors.NewTransportError("paypal token request failed", err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", errors.NewTransportError("failed to read token response", err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.NewRejectedError(fmt.Sprintf("paypal token request returned status %d", resp.StatusCode), string(body))
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if result.AccessToken == "" {
		return "", errors.NewRejectedError("paypal token response has no access token")
	}

	c.accessToken = result.AccessToken
	c.tokenClientID = cfg.ClientID
	c.tokenExpiry = now.Add(time.Duration(result.ExpiresIn)*time.Second - tokenExpirySlack)
	c.logger.Debugw("paypal access token refreshed", "expires_in", result.ExpiresIn)
	return c.accessToken, nil
}
