package notifier

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"plexward/internal/infrastructure/email"
	"plexward/internal/shared/biztime"
)

// TemplateContext carries the per-deployment values templates interpolate.
type TemplateContext struct {
	ServerName   string
	DashboardURL string
}

// FallbackInviteURL stands in when Plex shared directly and returned no
// invite link.
const FallbackInviteURL = "https://app.plex.tv"

func (tc TemplateContext) serverName() string {
	if tc.ServerName != "" {
		return tc.ServerName
	}
	return "our media server"
}

// ResolveDashboardURL picks the dashboard link for outgoing emails: an
// explicit dashboard URL wins, then /dashboard under the public base URL or
// the origin of a reference URL.
func ResolveDashboardURL(dashboardURL, publicBaseURL, referenceURL string) string {
	if dashboardURL != "" {
		return dashboardURL
	}
	if publicBaseURL != "" {
		return strings.TrimRight(publicBaseURL, "/") + "/dashboard"
	}
	if referenceURL != "" {
		if parsed, err := url.Parse(referenceURL); err == nil && parsed.Scheme != "" && parsed.Host != "" {
			return parsed.Scheme + "://" + parsed.Host + "/dashboard"
		}
	}
	return "/dashboard"
}

// InviteEmail invites the donor to accept their Plex share.
func InviteEmail(tc TemplateContext, to, inviteURL string) email.Message {
	if inviteURL == "" {
		inviteURL = FallbackInviteURL
	}
	subject := fmt.Sprintf("Your invite to %s", tc.serverName())
	plain := fmt.Sprintf(`You have been invited to %s.

Accept your invite here:
%s

Once accepted, your libraries appear in your Plex account automatically.
`, tc.serverName(), inviteURL)
	html := fmt.Sprintf(`<html><body>
<h2>You have been invited to %s</h2>
<p><a href="%s">Accept your invite</a></p>
<p>Or copy and paste this URL into your browser:</p>
<p>%s</p>
<p>Once accepted, your libraries appear in your Plex account automatically.</p>
</body></html>`, tc.serverName(), inviteURL, inviteURL)

	return email.Message{To: to, Subject: subject, PlainBody: plain, HTMLBody: html}
}

// ThankYouEmail confirms a subscription payment.
func ThankYouEmail(tc TemplateContext, to string) email.Message {
	subject := fmt.Sprintf("Thank you for supporting %s", tc.serverName())
	plain := fmt.Sprintf(`Thank you! Your subscription payment came through and your access to %s is active.

Manage your subscription any time:
%s
`, tc.serverName(), tc.DashboardURL)
	html := fmt.Sprintf(`<html><body>
<h2>Thank you!</h2>
<p>Your subscription payment came through and your access to %s is active.</p>
<p><a href="%s">Manage your subscription</a></p>
</body></html>`, tc.serverName(), tc.DashboardURL)

	return email.Message{To: to, Subject: subject, PlainBody: plain, HTMLBody: html}
}

// CancellationScheduledEmail tells a donor when their access ends. The
// timestamp is rendered as an HTTP date so it reads unambiguously.
func CancellationScheduledEmail(tc TemplateContext, to string, accessUntil time.Time) email.Message {
	until := biztime.FormatHTTPDate(accessUntil)
	subject := fmt.Sprintf("Your %s subscription has been cancelled", tc.serverName())
	plain := fmt.Sprintf(`Your subscription has been cancelled.

Your access to %s remains active until %s. After that your libraries will no longer be available.

If this was a mistake you can restart your subscription any time:
%s
`, tc.serverName(), until, tc.DashboardURL)
	html := fmt.Sprintf(`<html><body>
<h2>Subscription cancelled</h2>
<p>Your access to %s remains active until <strong>%s</strong>. After that your libraries will no longer be available.</p>
<p>If this was a mistake you can <a href="%s">restart your subscription</a> any time.</p>
</body></html>`, tc.serverName(), until, tc.DashboardURL)

	return email.Message{To: to, Subject: subject, PlainBody: plain, HTMLBody: html}
}

// PaymentFailedEmail warns a donor that a charge did not go through.
func PaymentFailedEmail(tc TemplateContext, to string, attemptCount int) email.Message {
	subject := fmt.Sprintf("Payment problem with your %s subscription", tc.serverName())
	plain := fmt.Sprintf(`We could not process your latest subscription payment (attempt %d).

Please update your payment details to keep your access to %s:
%s
`, attemptCount, tc.serverName(), tc.DashboardURL)
	html := fmt.Sprintf(`<html><body>
<h2>Payment problem</h2>
<p>We could not process your latest subscription payment (attempt %d).</p>
<p>Please <a href="%s">update your payment details</a> to keep your access to %s.</p>
</body></html>`, attemptCount, tc.DashboardURL, tc.serverName())

	return email.Message{To: to, Subject: subject, PlainBody: plain, HTMLBody: html}
}

// AnnouncementEmail renders admin-authored markdown into a sanitized HTML
// body; the raw markdown doubles as the plain-text body.
func AnnouncementEmail(tc TemplateContext, to, subject, markdown string) (email.Message, error) {
	var rendered strings.Builder
	if err := goldmark.Convert([]byte(markdown), &rendered); err != nil {
		return email.Message{}, fmt.Errorf("failed to render announcement markdown: %w", err)
	}
	sanitized := bluemonday.UGCPolicy().Sanitize(rendered.String())

	html := fmt.Sprintf(`<html><body>
%s
<hr>
<p><small>Sent by %s</small></p>
</body></html>`, sanitized, tc.serverName())

	return email.Message{To: to, Subject: subject, PlainBody: markdown, HTMLBody: html}, nil
}

// SupportReplyEmail wraps an admin-authored reply to a donor.
func SupportReplyEmail(tc TemplateContext, to, subject, body string) email.Message {
	plain := fmt.Sprintf(`%s

--
%s
`, body, tc.serverName())
	html := fmt.Sprintf(`<html><body>
<p>%s</p>
<hr>
<p><small>%s</small></p>
</body></html>`, strings.ReplaceAll(body, "\n", "<br>"), tc.serverName())

	return email.Message{To: to, Subject: subject, PlainBody: plain, HTMLBody: html}
}

// AdminNotificationEmail reports a lifecycle event to the operator.
func AdminNotificationEmail(tc TemplateContext, to, subject, body string) email.Message {
	plain := fmt.Sprintf(`%s

Server: %s
`, body, tc.serverName())
	html := fmt.Sprintf(`<html><body>
<p>%s</p>
<p><small>Server: %s</small></p>
</body></html>`, strings.ReplaceAll(body, "\n", "<br>"), tc.serverName())

	return email.Message{To: to, Subject: subject, PlainBody: plain, HTMLBody: html}
}
