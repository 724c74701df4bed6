package donor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDonor(t *testing.T) {
	t.Run("creates pending donor with normalized email", func(t *testing.T) {
		d, err := NewDonor(ProviderPayPal, "I-ABC123", "  Donor@Example.COM ", "Pat")
		require.NoError(t, err)

		assert.Equal(t, "donor@example.com", d.Email())
		assert.Equal(t, "Pat", d.Name())
		assert.Equal(t, StatusPending, d.Status())
		assert.Nil(t, d.AccessExpiresAt())
		assert.False(t, d.HadPreexistingAccess())
	})

	t.Run("rejects unknown provider", func(t *testing.T) {
		_, err := NewDonor(Provider("square"), "sub-1", "a@b.c", "")
		assert.Error(t, err)
	})

	t.Run("rejects empty subscription id", func(t *testing.T) {
		_, err := NewDonor(ProviderStripe, "", "a@b.c", "")
		assert.Error(t, err)
	})
}

func TestDonor_Activate(t *testing.T) {
	d, err := NewDonor(ProviderStripe, "sub_123", "a@b.c", "")
	require.NoError(t, err)

	expires := time.Now().UTC().Add(24 * time.Hour)
	d.Terminate(CauseCancelled, &expires)
	require.Equal(t, StatusCancelled, d.Status())
	require.NotNil(t, d.AccessExpiresAt())

	paidAt := time.Now().UTC()
	d.Activate(&paidAt)

	assert.Equal(t, StatusActive, d.Status())
	assert.Nil(t, d.AccessExpiresAt(), "activation must clear the grace window")
	require.NotNil(t, d.LastPaymentAt())
	assert.Equal(t, paidAt, *d.LastPaymentAt())
}

func TestDonor_SetStatus(t *testing.T) {
	d, err := NewDonor(ProviderPayPal, "I-1", "a@b.c", "")
	require.NoError(t, err)

	t.Run("rejects invalid status", func(t *testing.T) {
		assert.Error(t, d.SetStatus(Status("paused-ish")))
	})

	t.Run("entering active clears access expiration", func(t *testing.T) {
		expires := time.Now().UTC().Add(time.Hour)
		d.Terminate(CauseSuspended, &expires)
		require.NotNil(t, d.AccessExpiresAt())

		require.NoError(t, d.SetStatus(StatusActive))
		assert.Nil(t, d.AccessExpiresAt())
	})
}

func TestDonor_Terminate(t *testing.T) {
	tests := []struct {
		cause TerminationCause
		want  Status
	}{
		{CauseCancelled, StatusCancelled},
		{CauseSuspended, StatusSuspended},
		{CauseExpired, StatusExpired},
	}

	for _, tt := range tests {
		t.Run(string(tt.cause), func(t *testing.T) {
			d, err := NewDonor(ProviderPayPal, "I-2", "a@b.c", "")
			require.NoError(t, err)

			until := time.Now().UTC().Add(48 * time.Hour)
			d.Terminate(tt.cause, &until)

			assert.Equal(t, tt.want, d.Status())
			require.NotNil(t, d.AccessExpiresAt())
			assert.Equal(t, until, *d.AccessExpiresAt())
		})
	}
}

func TestDonor_AccessExpired(t *testing.T) {
	d, err := NewDonor(ProviderStripe, "sub_9", "a@b.c", "")
	require.NoError(t, err)

	now := time.Now().UTC()
	assert.False(t, d.AccessExpired(now), "no expiration set")

	past := now.Add(-time.Minute)
	d.Terminate(CauseCancelled, &past)
	assert.True(t, d.AccessExpired(now))

	future := now.Add(time.Minute)
	d.Terminate(CauseCancelled, &future)
	assert.False(t, d.AccessExpired(now))
}

func TestDonor_PreexistingAccess(t *testing.T) {
	d, err := NewDonor(ProviderPayPal, "I-3", "a@b.c", "")
	require.NoError(t, err)

	d.MarkPreexistingAccess()
	assert.True(t, d.HadPreexistingAccess())

	d.ClearPreexistingAccess()
	assert.False(t, d.HadPreexistingAccess())
}

func TestDonor_InviteEmail(t *testing.T) {
	t.Run("prefers plex email", func(t *testing.T) {
		d, err := NewDonor(ProviderPayPal, "I-4", "contact@example.com", "")
		require.NoError(t, err)
		d.SetPlexIdentity("12345", "plex@example.com")

		assert.Equal(t, "plex@example.com", d.InviteEmail())
	})

	t.Run("falls back to contact email", func(t *testing.T) {
		d, err := NewDonor(ProviderPayPal, "I-5", "contact@example.com", "")
		require.NoError(t, err)

		assert.Equal(t, "contact@example.com", d.InviteEmail())
	})
}

func TestDonor_UpdateContact(t *testing.T) {
	d, err := NewDonor(ProviderStripe, "sub_7", "old@example.com", "Old Name")
	require.NoError(t, err)

	d.UpdateContact("New@Example.com", "")
	assert.Equal(t, "new@example.com", d.Email())
	assert.Equal(t, "Old Name", d.Name(), "empty name must not clobber")

	d.UpdateContact("", "New Name")
	assert.Equal(t, "new@example.com", d.Email())
	assert.Equal(t, "New Name", d.Name())
}
