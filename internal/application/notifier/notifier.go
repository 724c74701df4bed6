// Package notifier builds and sends the lifecycle emails. Template
// construction is pure; delivery goes through the hot-reloadable email
// manager.
package notifier

import (
	"context"
	"time"

	"plexward/internal/application/settings"
	"plexward/internal/domain/donor"
	"plexward/internal/infrastructure/email"
	"plexward/internal/shared/logger"
	"plexward/internal/shared/utils"
)

// EmailSender is the delivery half of the email manager.
type EmailSender interface {
	Send(msg email.Message) error
	IsConfigured() bool
}

type Notifier struct {
	sender        EmailSender
	provider      *settings.Provider
	publicBaseURL string
	logger        logger.Interface
}

func NewNotifier(sender EmailSender, provider *settings.Provider, publicBaseURL string, log logger.Interface) *Notifier {
	return &Notifier{
		sender:        sender,
		provider:      provider,
		publicBaseURL: publicBaseURL,
		logger:        log,
	}
}

func (n *Notifier) templateContext(ctx context.Context) TemplateContext {
	cfg := n.provider.GetNotificationsConfig(ctx)
	return TemplateContext{
		ServerName:   cfg.ServerName,
		DashboardURL: ResolveDashboardURL(cfg.DashboardURL, n.publicBaseURL, ""),
	}
}

// RelayFlags marks relay addresses in event payloads. Apple private relay
// recipients often never see invite mail; the flags make that visible in
// the audit trail.
func RelayFlags(d *donor.Donor) map[string]any {
	flags := map[string]any{}
	if utils.IsRelayAddress(d.Email()) {
		flags["donorEmailIsRelay"] = true
	}
	if utils.IsRelayAddress(d.PlexEmail()) {
		flags["plexEmailIsRelay"] = true
	}
	return flags
}

// SendInvite mails the invite link to the donor's contact address.
func (n *Notifier) SendInvite(ctx context.Context, d *donor.Donor, inviteURL string) error {
	msg := InviteEmail(n.templateContext(ctx), d.Email(), inviteURL)
	return n.send(msg, "invite", d.ID())
}

// SendThankYou confirms a successful payment.
func (n *Notifier) SendThankYou(ctx context.Context, d *donor.Donor) error {
	msg := ThankYouEmail(n.templateContext(ctx), d.Email())
	return n.send(msg, "thank_you", d.ID())
}

// SendCancellationScheduled tells the donor when access ends.
func (n *Notifier) SendCancellationScheduled(ctx context.Context, d *donor.Donor, accessUntil time.Time) error {
	msg := CancellationScheduledEmail(n.templateContext(ctx), d.Email(), accessUntil)
	return n.send(msg, "cancellation_scheduled", d.ID())
}

// SendPaymentFailed warns about a failed charge.
func (n *Notifier) SendPaymentFailed(ctx context.Context, d *donor.Donor, attemptCount int) error {
	msg := PaymentFailedEmail(n.templateContext(ctx), d.Email(), attemptCount)
	return n.send(msg, "payment_failed", d.ID())
}

// SendAnnouncement mails an admin-authored markdown announcement.
func (n *Notifier) SendAnnouncement(ctx context.Context, to, subject, markdown string) error {
	msg, err := AnnouncementEmail(n.templateContext(ctx), to, subject, markdown)
	if err != nil {
		return err
	}
	return n.send(msg, "announcement", 0)
}

// SendSupportReply mails an admin reply to a donor.
func (n *Notifier) SendSupportReply(ctx context.Context, to, subject, body string) error {
	msg := SupportReplyEmail(n.templateContext(ctx), to, subject, body)
	return n.send(msg, "support_reply", 0)
}

// NotifyAdmin reports a lifecycle event to the configured admin address.
// A missing admin address drops the notification silently.
func (n *Notifier) NotifyAdmin(ctx context.Context, subject, body string) error {
	cfg := n.provider.GetNotificationsConfig(ctx)
	if cfg.AdminEmail == "" {
		n.logger.Debugw("no admin email configured, dropping admin notification", "subject", subject)
		return nil
	}
	msg := AdminNotificationEmail(n.templateContext(ctx), cfg.AdminEmail, subject, body)
	return n.send(msg, "admin_notification", 0)
}

func (n *Notifier) send(msg email.Message, kind string, donorID uint) error {
	if err := n.sender.Send(msg); err != nil {
		n.logger.Errorw("failed to send email",
			"kind", kind,
			"to", msg.To,
			"donor_id", donorID,
			"error", err,
		)
		return err
	}
	n.logger.Infow("email sent", "kind", kind, "to", msg.To, "donor_id", donorID)
	return nil
}
