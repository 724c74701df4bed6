package notifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDashboardURL(t *testing.T) {
	tests := []struct {
		name         string
		dashboardURL string
		publicBase   string
		reference    string
		want         string
	}{
		{"explicit dashboard url wins", "https://dash.example.com", "https://plex.example.com", "https://ref.example.com/x", "https://dash.example.com"},
		{"public base url gets /dashboard", "", "https://plex.example.com/", "", "https://plex.example.com/dashboard"},
		{"reference url origin is used last", "", "", "https://ref.example.com/some/path?q=1", "https://ref.example.com/dashboard"},
		{"relative fallback", "", "", "", "/dashboard"},
		{"unparseable reference falls through", "", "", "not a url", "/dashboard"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveDashboardURL(tt.dashboardURL, tt.publicBase, tt.reference))
		})
	}
}

func TestInviteEmail(t *testing.T) {
	tc := TemplateContext{ServerName: "Atlas Flix"}

	t.Run("includes the invite url", func(t *testing.T) {
		msg := InviteEmail(tc, "donor@example.com", "https://app.plex.tv/invite/abc")
		assert.Equal(t, "donor@example.com", msg.To)
		assert.Contains(t, msg.Subject, "Atlas Flix")
		assert.Contains(t, msg.PlainBody, "https://app.plex.tv/invite/abc")
		assert.Contains(t, msg.HTMLBody, "https://app.plex.tv/invite/abc")
	})

	t.Run("falls back to the plex app when no url", func(t *testing.T) {
		msg := InviteEmail(tc, "donor@example.com", "")
		assert.Contains(t, msg.PlainBody, FallbackInviteURL)
	})

	t.Run("generic server name when unset", func(t *testing.T) {
		msg := InviteEmail(TemplateContext{}, "donor@example.com", "")
		assert.Contains(t, msg.Subject, "our media server")
	})
}

func TestCancellationScheduledEmail(t *testing.T) {
	tc := TemplateContext{ServerName: "Atlas Flix", DashboardURL: "https://plex.example.com/dashboard"}
	until := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	msg := CancellationScheduledEmail(tc, "donor@example.com", until)
	assert.Contains(t, msg.PlainBody, "Tue, 01 Jan 2030 00:00:00 GMT")
	assert.Contains(t, msg.HTMLBody, "Tue, 01 Jan 2030 00:00:00 GMT")
	assert.Contains(t, msg.PlainBody, "https://plex.example.com/dashboard")
}

func TestPaymentFailedEmail(t *testing.T) {
	tc := TemplateContext{ServerName: "Atlas Flix", DashboardURL: "https://plex.example.com/dashboard"}

	msg := PaymentFailedEmail(tc, "donor@example.com", 3)
	assert.Contains(t, msg.PlainBody, "attempt 3")
	assert.Contains(t, msg.HTMLBody, "https://plex.example.com/dashboard")
}

func TestAnnouncementEmail(t *testing.T) {
	tc := TemplateContext{ServerName: "Atlas Flix"}

	t.Run("renders markdown into html", func(t *testing.T) {
		msg, err := AnnouncementEmail(tc, "donor@example.com", "Maintenance", "# Downtime\n\nBack **soon**.")
		require.NoError(t, err)
		assert.Contains(t, msg.HTMLBody, "<h1>Downtime</h1>")
		assert.Contains(t, msg.HTMLBody, "<strong>soon</strong>")
		assert.Equal(t, "# Downtime\n\nBack **soon**.", msg.PlainBody)
	})

	t.Run("strips script tags from the rendered body", func(t *testing.T) {
		msg, err := AnnouncementEmail(tc, "donor@example.com", "Heads up", "hello <script>alert(1)</script> world")
		require.NoError(t, err)
		assert.NotContains(t, msg.HTMLBody, "<script>")
	})
}
