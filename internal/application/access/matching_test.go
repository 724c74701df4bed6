package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plexward/internal/domain/donor"
	"plexward/internal/infrastructure/plex"
)

func testDonor(t *testing.T, email string) *donor.Donor {
	t.Helper()
	d, err := donor.NewDonor(donor.ProviderPayPal, "I-TEST", email, "Test Donor")
	require.NoError(t, err)
	return d
}

func TestMatchUser(t *testing.T) {
	t.Run("matches on normalized email", func(t *testing.T) {
		d := testDonor(t, "Donor@Example.COM")
		user := plex.User{Email: "donor@example.com"}
		assert.True(t, MatchUser(d, &user))
	})

	t.Run("matches on username field", func(t *testing.T) {
		d := testDonor(t, "donor@example.com")
		user := plex.User{Username: "donor@example.com"}
		assert.True(t, MatchUser(d, &user))
	})

	t.Run("matches on invitation email", func(t *testing.T) {
		d := testDonor(t, "donor@example.com")
		user := plex.User{InvitationEmails: []string{"other@example.com", "donor@example.com"}}
		assert.True(t, MatchUser(d, &user))
	})

	t.Run("matches on plex email when contact email differs", func(t *testing.T) {
		d := testDonor(t, "billing@example.com")
		d.SetPlexIdentity("", "plexuser@example.com")
		user := plex.User{Email: "plexuser@example.com"}
		assert.True(t, MatchUser(d, &user))
	})

	t.Run("matches on account id ignoring hyphens and case", func(t *testing.T) {
		d := testDonor(t, "donor@example.com")
		d.SetPlexIdentity("ABCD-1234-ef56", "")
		user := plex.User{Email: "unrelated@example.com", UUID: "abcd1234EF56"}
		assert.True(t, MatchUser(d, &user))
	})

	t.Run("no match on different identity", func(t *testing.T) {
		d := testDonor(t, "donor@example.com")
		user := plex.User{Email: "stranger@example.com", UUID: "feedbeef"}
		assert.False(t, MatchUser(d, &user))
	})

	t.Run("empty fields never match", func(t *testing.T) {
		d := testDonor(t, "donor@example.com")
		user := plex.User{}
		assert.False(t, MatchUser(d, &user))
	})
}

func TestMatchShare(t *testing.T) {
	d := testDonor(t, "donor@example.com")
	d.SetPlexIdentity("uuid-1234", "")

	assert.True(t, MatchShare(d, &plex.Share{Emails: []string{"DONOR@example.com"}}))
	assert.True(t, MatchShare(d, &plex.Share{UserIDs: []string{"uuid1234"}}))
	assert.False(t, MatchShare(d, &plex.Share{Emails: []string{"other@example.com"}}))
	assert.False(t, MatchShare(d, &plex.Share{}))
}

func TestDonorHasShare(t *testing.T) {
	d := testDonor(t, "donor@example.com")

	t.Run("shared when an accepted user matches", func(t *testing.T) {
		users := []plex.User{
			{Email: "other@example.com"},
			{Email: "donor@example.com"},
		}
		assert.Equal(t, PresenceShared, DonorHasShare(d, users))
	})

	t.Run("pending when the matched user has not accepted", func(t *testing.T) {
		users := []plex.User{{Email: "donor@example.com", Pending: true}}
		assert.Equal(t, PresencePending, DonorHasShare(d, users))
	})

	t.Run("pending detected from status text", func(t *testing.T) {
		users := []plex.User{{Email: "donor@example.com", Status: "Invited"}}
		assert.Equal(t, PresencePending, DonorHasShare(d, users))
	})

	t.Run("absent when no user matches", func(t *testing.T) {
		users := []plex.User{{Email: "other@example.com"}}
		assert.Equal(t, PresenceAbsent, DonorHasShare(d, users))
	})
}

func TestFindDonorUser(t *testing.T) {
	d := testDonor(t, "donor@example.com")
	users := []plex.User{
		{Email: "other@example.com"},
		{Email: "donor@example.com", UUID: "uuid-77"},
	}

	found := FindDonorUser(d, users)
	require.NotNil(t, found)
	assert.Equal(t, "uuid-77", found.UUID)

	assert.Nil(t, FindDonorUser(d, []plex.User{{Email: "nobody@example.com"}}))
}

func TestIdentitySnapshot(t *testing.T) {
	t.Run("prefers first populated id field", func(t *testing.T) {
		user := plex.User{UUID: "uuid-1", Email: "donor@example.com"}
		id, email := IdentitySnapshot(&user)
		assert.NotEmpty(t, id)
		assert.Equal(t, "donor@example.com", email)
	})

	t.Run("falls back to account email", func(t *testing.T) {
		user := plex.User{AccountEmail: " donor@example.com "}
		_, email := IdentitySnapshot(&user)
		assert.Equal(t, "donor@example.com", email)
	})
}
