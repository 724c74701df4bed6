package ingest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plexward/internal/domain/donor"
	"plexward/internal/infrastructure/stripe"
)

func stripeEvent(t *testing.T, eventType, object string) *stripe.Event {
	t.Helper()
	ev := &stripe.Event{ID: "evt_1", Type: eventType}
	ev.Data.Object = json.RawMessage(object)
	return ev
}

func TestTranslateStripe_CheckoutCompleted(t *testing.T) {
	t.Run("subscription checkout activates", func(t *testing.T) {
		ev, err := TranslateStripe(stripeEvent(t, "checkout.session.completed", `{
			"id": "cs_1",
			"subscription": "sub_123",
			"customer_details": {"email": "payer@example.com", "name": "Ada Lovelace"}
		}`))
		require.NoError(t, err)

		activated, ok := ev.(SubscriptionActivated)
		require.True(t, ok, "expected SubscriptionActivated, got %T", ev)
		assert.Equal(t, donor.ProviderStripe, activated.ProviderName())
		assert.Equal(t, "sub_123", activated.SubscriptionID())
		assert.Equal(t, "payer@example.com", activated.Subscriber.Email)
		assert.Equal(t, "Ada Lovelace", activated.Subscriber.Name)
	})

	t.Run("falls back to top-level customer email", func(t *testing.T) {
		ev, err := TranslateStripe(stripeEvent(t, "checkout.session.completed", `{
			"subscription": "sub_123",
			"customer_email": "legacy@example.com"
		}`))
		require.NoError(t, err)
		assert.Equal(t, "legacy@example.com", ev.(SubscriptionActivated).Subscriber.Email)
	})

	t.Run("one-time checkout is ignored", func(t *testing.T) {
		ev, err := TranslateStripe(stripeEvent(t, "checkout.session.completed", `{"id": "cs_2"}`))
		assert.NoError(t, err)
		assert.Nil(t, ev)
	})
}

func TestTranslateStripe_SubscriptionUpdated(t *testing.T) {
	ev, err := TranslateStripe(stripeEvent(t, "customer.subscription.updated", `{
		"id": "sub_123",
		"status": "past_due",
		"current_period_end": 1900000000
	}`))
	require.NoError(t, err)

	updated, ok := ev.(SubscriptionUpdated)
	require.True(t, ok)
	assert.Equal(t, donor.StatusPastDue, updated.Status)
	require.NotNil(t, updated.NextBillingAt)
	assert.Equal(t, time.Unix(1900000000, 0).UTC(), *updated.NextBillingAt)
}

func TestTranslateStripe_SubscriptionDeleted(t *testing.T) {
	ev, err := TranslateStripe(stripeEvent(t, "customer.subscription.deleted", `{
		"id": "sub_123",
		"current_period_end": 1900000000
	}`))
	require.NoError(t, err)

	terminated, ok := ev.(SubscriptionTerminated)
	require.True(t, ok)
	assert.Equal(t, donor.CauseCancelled, terminated.Cause)
	require.NotNil(t, terminated.EffectiveAt)
}

func TestTranslateStripe_InvoicePaymentSucceeded(t *testing.T) {
	t.Run("converts amount to major units", func(t *testing.T) {
		ev, err := TranslateStripe(stripeEvent(t, "invoice.payment_succeeded", `{
			"id": "in_1",
			"subscription": "sub_123",
			"customer_email": "payer@example.com",
			"amount_paid": 599,
			"currency": "usd",
			"created": 1900000000
		}`))
		require.NoError(t, err)

		payment, ok := ev.(PaymentSucceeded)
		require.True(t, ok)
		assert.Equal(t, "in_1", payment.PaymentID)
		assert.Equal(t, 5.99, payment.Amount)
		assert.Equal(t, "USD", payment.Currency)
		assert.Equal(t, "payer@example.com", payment.PayerEmail)
		assert.Equal(t, time.Unix(1900000000, 0).UTC(), payment.PaidAt)
	})

	t.Run("invoice without subscription is ignored", func(t *testing.T) {
		ev, err := TranslateStripe(stripeEvent(t, "invoice.payment_succeeded", `{"id": "in_2", "amount_paid": 100}`))
		assert.NoError(t, err)
		assert.Nil(t, ev)
	})
}

func TestTranslateStripe_InvoicePaymentFailed(t *testing.T) {
	ev, err := TranslateStripe(stripeEvent(t, "invoice.payment_failed", `{
		"id": "in_1",
		"subscription": "sub_123",
		"attempt_count": 2
	}`))
	require.NoError(t, err)

	failed, ok := ev.(PaymentFailed)
	require.True(t, ok)
	assert.Equal(t, 2, failed.AttemptCount)
}

func TestTranslateStripe_UnhandledAndMalformed(t *testing.T) {
	t.Run("unhandled type is acknowledged without an event", func(t *testing.T) {
		ev, err := TranslateStripe(stripeEvent(t, "charge.refunded", `{}`))
		assert.NoError(t, err)
		assert.Nil(t, ev)
	})

	t.Run("subscription without id is rejected", func(t *testing.T) {
		_, err := TranslateStripe(stripeEvent(t, "customer.subscription.updated", `{}`))
		assert.Error(t, err)
	})

	t.Run("malformed object is rejected", func(t *testing.T) {
		_, err := TranslateStripe(stripeEvent(t, "invoice.payment_succeeded", `[]`))
		assert.Error(t, err)
	})
}

func TestMapStripeStatus(t *testing.T) {
	tests := []struct {
		in   string
		want donor.Status
	}{
		{"active", donor.StatusActive},
		{"trialing", donor.StatusTrial},
		{"past_due", donor.StatusPastDue},
		{"unpaid", donor.StatusPastDue},
		{"canceled", donor.StatusCancelled},
		{"incomplete", donor.StatusPending},
		{"incomplete_expired", donor.StatusPending},
		{"paused", donor.StatusSuspended},
		{"brand_new_status", donor.StatusPending},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapStripeStatus(tt.in), "status %q", tt.in)
	}
}
