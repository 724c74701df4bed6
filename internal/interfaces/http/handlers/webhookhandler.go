package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"plexward/internal/application/ingest"
	"plexward/internal/domain/event"
	"plexward/internal/infrastructure/paypal"
	"plexward/internal/infrastructure/stripe"
	"plexward/internal/shared/errors"
	"plexward/internal/shared/logger"
	"plexward/internal/shared/utils"
)

// PayPalVerifier verifies a PayPal webhook delivery against the configured
// webhook id.
type PayPalVerifier interface {
	VerifyWebhookSignature(ctx context.Context, headers paypal.WebhookHeaders, rawEvent []byte) error
}

// StripeVerifier verifies and decodes a Stripe webhook delivery.
type StripeVerifier interface {
	ConstructWebhookEvent(ctx context.Context, payload []byte, sigHeader string) (*stripe.Event, error)
}

// EventProcessor applies one normalized subscription event.
type EventProcessor interface {
	Process(ctx context.Context, ev ingest.SubscriptionEvent) error
}

// WebhookHandler receives provider webhook deliveries. Verification runs on
// the raw body; a verified event is acknowledged 200 even when side effects
// failed, because redelivery would not fix a Plex or SMTP outage. Only store
// failures answer non-2xx so the provider retries.
type WebhookHandler struct {
	paypal    PayPalVerifier
	stripe    StripeVerifier
	processor EventProcessor
	events    event.Repository
	logger    logger.Interface
}

func NewWebhookHandler(
	paypalVerifier PayPalVerifier,
	stripeVerifier StripeVerifier,
	processor EventProcessor,
	events event.Repository,
	log logger.Interface,
) *WebhookHandler {
	return &WebhookHandler{
		paypal:    paypalVerifier,
		stripe:    stripeVerifier,
		processor: processor,
		events:    events,
		logger:    log,
	}
}

// HandlePayPal receives POST /webhook/paypal.
func (h *WebhookHandler) HandlePayPal(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "failed to read request body")
		return
	}

	headers := paypal.WebhookHeaders{
		TransmissionID:   c.GetHeader("paypal-transmission-id"),
		TransmissionTime: c.GetHeader("paypal-transmission-time"),
		TransmissionSig:  c.GetHeader("paypal-transmission-sig"),
		CertURL:          c.GetHeader("paypal-cert-url"),
		AuthAlgo:         c.GetHeader("paypal-auth-algo"),
	}

	if err := h.paypal.VerifyWebhookSignature(c.Request.Context(), headers, body); err != nil {
		h.rejectDelivery(c, "paypal", err)
		return
	}

	ev, err := ingest.TranslatePayPal(body)
	if err != nil {
		h.rejectDelivery(c, "paypal", err)
		return
	}

	h.dispatch(c, "paypal", ev)
}

// HandleStripe receives POST /webhook/stripe.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "failed to read request body")
		return
	}

	stripeEvent, err := h.stripe.ConstructWebhookEvent(c.Request.Context(), body, c.GetHeader("stripe-signature"))
	if err != nil {
		h.rejectDelivery(c, "stripe", err)
		return
	}

	ev, err := ingest.TranslateStripe(stripeEvent)
	if err != nil {
		h.rejectDelivery(c, "stripe", err)
		return
	}

	h.dispatch(c, "stripe", ev)
}

// dispatch runs the event through the reconciler and acknowledges it. A nil
// event is an unhandled kind, acknowledged without processing so the
// provider stops redelivering it.
func (h *WebhookHandler) dispatch(c *gin.Context, provider string, ev ingest.SubscriptionEvent) {
	if ev == nil {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	h.audit(c.Request.Context(), event.KindWebhookReceived, map[string]any{
		"provider":        provider,
		"kind":            ev.Kind(),
		"subscription_id": ev.SubscriptionID(),
	})

	if err := h.processor.Process(c.Request.Context(), ev); err != nil {
		h.logger.Errorw("event processing failed",
			"provider", provider,
			"kind", ev.Kind(),
			"subscription_id", ev.SubscriptionID(),
			"error", err,
		)
		utils.AppErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// rejectDelivery answers 400 and audits the refusal. An unconfigured
// verifier gets its own audit kind so the operator can tell a setup gap
// from a forged delivery.
func (h *WebhookHandler) rejectDelivery(c *gin.Context, provider string, err error) {
	kind := event.KindWebhookRejected
	if errors.IsNotConfiguredError(err) {
		kind = event.KindWebhookVerifyUnconfigured
	}

	h.logger.Warnw("webhook delivery rejected",
		"provider", provider,
		"error", err,
	)
	h.audit(c.Request.Context(), kind, map[string]any{
		"provider": provider,
		"error":    err.Error(),
	})

	utils.ErrorResponse(c, http.StatusBadRequest, "webhook verification failed")
}

func (h *WebhookHandler) audit(ctx context.Context, kind string, payload map[string]any) {
	if err := h.events.Log(ctx, kind, payload); err != nil {
		h.logger.Errorw("failed to log webhook audit event", "kind", kind, "error", err)
	}
}
