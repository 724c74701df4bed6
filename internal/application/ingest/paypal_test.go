package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plexward/internal/domain/donor"
)

func TestTranslatePayPal_Activated(t *testing.T) {
	raw := []byte(`{
		"id": "WH-1",
		"event_type": "BILLING.SUBSCRIPTION.ACTIVATED",
		"resource": {
			"id": "I-ABC123",
			"status": "ACTIVE",
			"subscriber": {
				"email_address": "payer@example.com",
				"name": {"given_name": "Ada", "surname": "Lovelace"}
			},
			"billing_info": {
				"next_billing_time": "2026-04-01T00:00:00Z",
				"last_payment": {"time": "2026-03-01T12:30:00Z"}
			}
		}
	}`)

	ev, err := TranslatePayPal(raw)
	require.NoError(t, err)

	activated, ok := ev.(SubscriptionActivated)
	require.True(t, ok, "expected SubscriptionActivated, got %T", ev)
	assert.Equal(t, donor.ProviderPayPal, activated.ProviderName())
	assert.Equal(t, "I-ABC123", activated.SubscriptionID())
	assert.Equal(t, "payer@example.com", activated.Subscriber.Email)
	assert.Equal(t, "Ada Lovelace", activated.Subscriber.Name)
	require.NotNil(t, activated.LastPaymentAt)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC), *activated.LastPaymentAt)
	require.NotNil(t, activated.NextBillingAt)
}

func TestTranslatePayPal_Terminations(t *testing.T) {
	tests := []struct {
		eventType string
		cause     donor.TerminationCause
	}{
		{"BILLING.SUBSCRIPTION.CANCELLED", donor.CauseCancelled},
		{"BILLING.SUBSCRIPTION.SUSPENDED", donor.CauseSuspended},
		{"BILLING.SUBSCRIPTION.EXPIRED", donor.CauseExpired},
	}
	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			raw := []byte(`{
				"event_type": "` + tt.eventType + `",
				"resource": {
					"id": "I-XYZ",
					"billing_info": {"next_billing_time": "2026-05-01T00:00:00Z"}
				}
			}`)

			ev, err := TranslatePayPal(raw)
			require.NoError(t, err)

			terminated, ok := ev.(SubscriptionTerminated)
			require.True(t, ok, "expected SubscriptionTerminated, got %T", ev)
			assert.Equal(t, tt.cause, terminated.Cause)
			require.NotNil(t, terminated.EffectiveAt)
			assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), *terminated.EffectiveAt)
		})
	}
}

func TestTranslatePayPal_Updated(t *testing.T) {
	raw := []byte(`{
		"event_type": "BILLING.SUBSCRIPTION.UPDATED",
		"resource": {"id": "I-XYZ", "status": "SUSPENDED", "billing_info": {}}
	}`)

	ev, err := TranslatePayPal(raw)
	require.NoError(t, err)

	updated, ok := ev.(SubscriptionUpdated)
	require.True(t, ok)
	assert.Equal(t, donor.StatusSuspended, updated.Status)
	assert.Nil(t, updated.NextBillingAt)
}

func TestTranslatePayPal_PaymentSale(t *testing.T) {
	raw := []byte(`{
		"event_type": "PAYMENT.SALE.COMPLETED",
		"resource": {
			"id": "PAY-1",
			"billing_agreement_id": "I-ABC123",
			"create_time": "2026-03-01T12:30:00Z",
			"amount": {"total": "5.00", "currency": "USD"}
		}
	}`)

	ev, err := TranslatePayPal(raw)
	require.NoError(t, err)

	payment, ok := ev.(PaymentSucceeded)
	require.True(t, ok)
	assert.Equal(t, "I-ABC123", payment.SubscriptionID())
	assert.Equal(t, "PAY-1", payment.PaymentID)
	assert.Equal(t, 5.00, payment.Amount)
	assert.Equal(t, "USD", payment.Currency)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC), payment.PaidAt)
}

func TestTranslatePayPal_PaymentCapture(t *testing.T) {
	raw := []byte(`{
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {
			"id": "CAP-1",
			"amount": {"value": "9.99", "currency_code": "EUR"},
			"supplementary_data": {"related_ids": {"subscription_id": "I-SUB9"}}
		}
	}`)

	ev, err := TranslatePayPal(raw)
	require.NoError(t, err)

	payment, ok := ev.(PaymentSucceeded)
	require.True(t, ok)
	assert.Equal(t, "I-SUB9", payment.SubscriptionID())
	assert.Equal(t, 9.99, payment.Amount)
	assert.Equal(t, "EUR", payment.Currency)
}

func TestTranslatePayPal_PaymentWithoutSubscriptionReference(t *testing.T) {
	raw := []byte(`{
		"event_type": "PAYMENT.SALE.COMPLETED",
		"resource": {"id": "PAY-2", "amount": {"total": "5.00", "currency": "USD"}}
	}`)

	_, err := TranslatePayPal(raw)
	assert.Error(t, err)
}

func TestTranslatePayPal_PaymentFailed(t *testing.T) {
	t.Run("uses reported attempt count", func(t *testing.T) {
		raw := []byte(`{
			"event_type": "BILLING.SUBSCRIPTION.PAYMENT.FAILED",
			"resource": {"id": "I-XYZ", "billing_info": {"failed_payments_count": 3}}
		}`)

		ev, err := TranslatePayPal(raw)
		require.NoError(t, err)

		failed, ok := ev.(PaymentFailed)
		require.True(t, ok)
		assert.Equal(t, 3, failed.AttemptCount)
	})

	t.Run("defaults attempt count to one", func(t *testing.T) {
		raw := []byte(`{
			"event_type": "BILLING.SUBSCRIPTION.PAYMENT.FAILED",
			"resource": {"id": "I-XYZ", "billing_info": {}}
		}`)

		ev, err := TranslatePayPal(raw)
		require.NoError(t, err)
		assert.Equal(t, 1, ev.(PaymentFailed).AttemptCount)
	})
}

func TestTranslatePayPal_UnhandledAndMalformed(t *testing.T) {
	t.Run("unhandled type is acknowledged without an event", func(t *testing.T) {
		ev, err := TranslatePayPal([]byte(`{"event_type": "CUSTOMER.DISPUTE.CREATED", "resource": {}}`))
		assert.NoError(t, err)
		assert.Nil(t, ev)
	})

	t.Run("invalid JSON is rejected", func(t *testing.T) {
		_, err := TranslatePayPal([]byte(`{not json`))
		assert.Error(t, err)
	})

	t.Run("missing event_type is rejected", func(t *testing.T) {
		_, err := TranslatePayPal([]byte(`{"id": "WH-1"}`))
		assert.Error(t, err)
	})

	t.Run("subscription resource without id is rejected", func(t *testing.T) {
		_, err := TranslatePayPal([]byte(`{"event_type": "BILLING.SUBSCRIPTION.ACTIVATED", "resource": {}}`))
		assert.Error(t, err)
	})
}

func TestMapPayPalStatus(t *testing.T) {
	tests := []struct {
		in   string
		want donor.Status
	}{
		{"ACTIVE", donor.StatusActive},
		{"active", donor.StatusActive},
		{"APPROVAL_PENDING", donor.StatusPending},
		{"APPROVED", donor.StatusPending},
		{"SUSPENDED", donor.StatusSuspended},
		{"CANCELLED", donor.StatusCancelled},
		{"EXPIRED", donor.StatusExpired},
		{"SOMETHING_NEW", donor.StatusPending},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapPayPalStatus(tt.in), "status %q", tt.in)
	}
}
