package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signPayload(t *testing.T, payload []byte, secret string, ts time.Time) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestConstructWebhookEvent(t *testing.T) {
	secret := "whsec_test_secret"
	payload := []byte(`{"id":"evt_1","type":"invoice.payment_succeeded","data":{"object":{"id":"in_1"}}}`)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("accepts valid signature", func(t *testing.T) {
		header := signPayload(t, payload, secret, now)

		ev, err := ConstructWebhookEvent(payload, header, secret, DefaultTolerance, now)
		require.NoError(t, err)
		assert.Equal(t, "evt_1", ev.ID)
		assert.Equal(t, "invoice.payment_succeeded", ev.Type)
	})

	t.Run("rejects wrong secret", func(t *testing.T) {
		header := signPayload(t, payload, "whsec_other", now)

		_, err := ConstructWebhookEvent(payload, header, secret, DefaultTolerance, now)
		assert.Error(t, err)
	})

	t.Run("rejects tampered payload", func(t *testing.T) {
		header := signPayload(t, payload, secret, now)
		tampered := []byte(`{"id":"evt_1","type":"invoice.payment_succeeded","data":{"object":{"id":"in_forged"}}}`)

		_, err := ConstructWebhookEvent(tampered, header, secret, DefaultTolerance, now)
		assert.Error(t, err)
	})

	t.Run("rejects stale timestamp", func(t *testing.T) {
		stale := now.Add(-10 * time.Minute)
		header := signPayload(t, payload, secret, stale)

		_, err := ConstructWebhookEvent(payload, header, secret, DefaultTolerance, now)
		assert.Error(t, err)
	})

	t.Run("accepts timestamp inside tolerance", func(t *testing.T) {
		recent := now.Add(-4 * time.Minute)
		header := signPayload(t, payload, secret, recent)

		_, err := ConstructWebhookEvent(payload, header, secret, DefaultTolerance, now)
		assert.NoError(t, err)
	})

	t.Run("rejects malformed header", func(t *testing.T) {
		for _, header := range []string{"", "t=abc,v1=00", "v1=deadbeef", "t=123"} {
			_, err := ConstructWebhookEvent(payload, header, secret, DefaultTolerance, now)
			assert.Error(t, err, "header %q", header)
		}
	})
}

func TestAmountToMajorUnits(t *testing.T) {
	assert.Equal(t, 5.0, AmountToMajorUnits(500))
	assert.Equal(t, 0.99, AmountToMajorUnits(99))
	assert.Equal(t, 0.0, AmountToMajorUnits(0))
}
