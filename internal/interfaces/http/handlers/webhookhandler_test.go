package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plexward/internal/application/ingest"
	"plexward/internal/domain/event"
	"plexward/internal/infrastructure/paypal"
	"plexward/internal/infrastructure/stripe"
	"plexward/internal/shared/errors"
	"plexward/internal/shared/logger"
)

func testLogger() logger.Interface {
	return logger.NewLoggerWithSlog(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type stubPayPalVerifier struct {
	err     error
	headers paypal.WebhookHeaders
}

func (s *stubPayPalVerifier) VerifyWebhookSignature(ctx context.Context, headers paypal.WebhookHeaders, rawEvent []byte) error {
	s.headers = headers
	return s.err
}

type stubStripeVerifier struct {
	err error
}

func (s *stubStripeVerifier) ConstructWebhookEvent(ctx context.Context, payload []byte, sigHeader string) (*stripe.Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	var ev stripe.Event
	if uerr := json.Unmarshal(payload, &ev); uerr != nil {
		return nil, uerr
	}
	return &ev, nil
}

type stubProcessor struct {
	mu     sync.Mutex
	err    error
	events []ingest.SubscriptionEvent
}

func (s *stubProcessor) Process(ctx context.Context, ev ingest.SubscriptionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

type stubEventLog struct {
	mu    sync.Mutex
	kinds []string
}

func (s *stubEventLog) Log(ctx context.Context, kind string, payload map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, kind)
	return nil
}

func (s *stubEventLog) ListRecent(ctx context.Context, limit int) ([]*event.Event, error) {
	return nil, nil
}

func (s *stubEventLog) ListByKind(ctx context.Context, kind string, limit int) ([]*event.Event, error) {
	return nil, nil
}

type webhookFixture struct {
	paypal    *stubPayPalVerifier
	stripe    *stubStripeVerifier
	processor *stubProcessor
	audit     *stubEventLog
	router    *gin.Engine
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &webhookFixture{
		paypal:    &stubPayPalVerifier{},
		stripe:    &stubStripeVerifier{},
		processor: &stubProcessor{},
		audit:     &stubEventLog{},
	}
	handler := NewWebhookHandler(f.paypal, f.stripe, f.processor, f.audit, testLogger())

	f.router = gin.New()
	f.router.POST("/webhook/paypal", handler.HandlePayPal)
	f.router.POST("/webhook/stripe", handler.HandleStripe)
	return f
}

func (f *webhookFixture) post(t *testing.T, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestWebhookHandler_PayPal(t *testing.T) {
	activation := `{
		"event_type": "BILLING.SUBSCRIPTION.ACTIVATED",
		"resource": {"id": "I-1", "subscriber": {"email_address": "donor@example.com"}, "billing_info": {}}
	}`

	t.Run("verified event is processed and acknowledged", func(t *testing.T) {
		f := newWebhookFixture(t)

		rec := f.post(t, "/webhook/paypal", activation, map[string]string{
			"Paypal-Transmission-Id": "tid-1",
		})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "tid-1", f.paypal.headers.TransmissionID)
		require.Len(t, f.processor.events, 1)
		assert.Equal(t, "I-1", f.processor.events[0].SubscriptionID())
		assert.Contains(t, f.audit.kinds, event.KindWebhookReceived)
	})

	t.Run("failed verification answers 400", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.paypal.err = errors.NewRejectedError("signature mismatch")

		rec := f.post(t, "/webhook/paypal", activation, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, f.processor.events)
		assert.Contains(t, f.audit.kinds, event.KindWebhookRejected)
	})

	t.Run("unconfigured verifier gets its own audit kind", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.paypal.err = errors.NewNotConfiguredError("paypal webhook id not configured")

		rec := f.post(t, "/webhook/paypal", activation, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, f.audit.kinds, event.KindWebhookVerifyUnconfigured)
		assert.NotContains(t, f.audit.kinds, event.KindWebhookRejected)
	})

	t.Run("unparseable body after verification answers 400", func(t *testing.T) {
		f := newWebhookFixture(t)

		rec := f.post(t, "/webhook/paypal", `{not json`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, f.audit.kinds, event.KindWebhookRejected)
	})
}

func TestWebhookHandler_Stripe(t *testing.T) {
	invoice := `{
		"id": "evt_1",
		"type": "invoice.payment_succeeded",
		"data": {"object": {"id": "in_1", "subscription": "sub_1", "amount_paid": 500, "currency": "usd", "created": 1900000000}}
	}`

	t.Run("verified event is processed and acknowledged", func(t *testing.T) {
		f := newWebhookFixture(t)

		rec := f.post(t, "/webhook/stripe", invoice, map[string]string{
			"Stripe-Signature": "t=1,v1=sig",
		})

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, f.processor.events, 1)
		assert.Equal(t, "sub_1", f.processor.events[0].SubscriptionID())
	})

	t.Run("unhandled event type is acknowledged without processing", func(t *testing.T) {
		f := newWebhookFixture(t)

		rec := f.post(t, "/webhook/stripe", `{"id": "evt_2", "type": "charge.refunded", "data": {"object": {}}}`, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, f.processor.events)
		assert.Empty(t, f.audit.kinds)
	})

	t.Run("invalid signature answers 400", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.stripe.err = errors.NewRejectedError("no matching stripe signature")

		rec := f.post(t, "/webhook/stripe", invoice, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, f.processor.events)
	})

	t.Run("store failure answers non-2xx so the provider redelivers", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.processor.err = errors.NewInternalError("database is down")

		rec := f.post(t, "/webhook/stripe", invoice, nil)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, f.audit.kinds, event.KindWebhookReceived)
	})
}
