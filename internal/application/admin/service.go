// Package admin backs the token-protected operator API: donor inspection,
// forced reconciliation, integration verification, settings updates, share
// links and announcements.
package admin

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"plexward/internal/application/ingest"
	"plexward/internal/application/notifier"
	"plexward/internal/application/reconciler"
	"plexward/internal/application/settings"
	"plexward/internal/domain/donor"
	"plexward/internal/domain/event"
	"plexward/internal/domain/invite"
	"plexward/internal/domain/payment"
	"plexward/internal/domain/sharelink"
	"plexward/internal/infrastructure/paypal"
	"plexward/internal/infrastructure/stripe"
	"plexward/internal/shared/errors"
	"plexward/internal/shared/logger"
)

// CredentialVerifier checks that one outbound integration is reachable with
// the currently configured credentials.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context) error
}

// TestMailer sends a test message through the live SMTP configuration.
type TestMailer interface {
	SendTestEmail(to string) error
	IsConfigured() bool
}

// StripeFetcher reads a Stripe subscription for the refresh flow.
type StripeFetcher interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
}

// Service wires the operator flows together.
type Service struct {
	donors     donor.Repository
	invites    invite.Repository
	payments   payment.Repository
	events     event.Repository
	shareLinks sharelink.Repository
	reconciler *reconciler.Reconciler
	notifier   *notifier.Notifier
	settings   *settings.Service
	paypal     reconciler.SubscriptionFetcher
	stripe     StripeFetcher
	verifiers  map[string]CredentialVerifier
	mailer     TestMailer
	logger     logger.Interface
}

func NewService(
	donors donor.Repository,
	invites invite.Repository,
	payments payment.Repository,
	events event.Repository,
	shareLinks sharelink.Repository,
	rec *reconciler.Reconciler,
	notif *notifier.Notifier,
	settingsSvc *settings.Service,
	paypalClient reconciler.SubscriptionFetcher,
	stripeClient StripeFetcher,
	verifiers map[string]CredentialVerifier,
	mailer TestMailer,
	log logger.Interface,
) *Service {
	return &Service{
		donors:     donors,
		invites:    invites,
		payments:   payments,
		events:     events,
		shareLinks: shareLinks,
		reconciler: rec,
		notifier:   notif,
		settings:   settingsSvc,
		paypal:     paypalClient,
		stripe:     stripeClient,
		verifiers:  verifiers,
		mailer:     mailer,
		logger:     log,
	}
}

// DonorDetail is the list view: the donor plus its active invite and
// payment history.
type DonorDetail struct {
	Donor        *donor.Donor
	ActiveInvite *invite.Invite
	Payments     []*payment.Payment
}

// ListDonors returns every donor with invite and payment details attached.
func (s *Service) ListDonors(ctx context.Context) ([]DonorDetail, error) {
	donors, err := s.donors.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list donors: %w", err)
	}

	details := make([]DonorDetail, 0, len(donors))
	for _, d := range donors {
		detail := DonorDetail{Donor: d}

		inv, err := s.invites.LatestActiveForDonor(ctx, d.ID())
		if err == nil {
			detail.ActiveInvite = inv
		} else if !stderrors.Is(err, invite.ErrNotFound) {
			return nil, fmt.Errorf("failed to load invite for donor %d: %w", d.ID(), err)
		}

		payments, err := s.payments.ListForDonor(ctx, d.ID())
		if err != nil {
			return nil, fmt.Errorf("failed to list payments for donor %d: %w", d.ID(), err)
		}
		detail.Payments = payments

		details = append(details, detail)
	}
	return details, nil
}

// GetDonor returns one donor's detail view.
func (s *Service) GetDonor(ctx context.Context, id uint) (*DonorDetail, error) {
	d, err := s.donors.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, donor.ErrNotFound) {
			return nil, errors.NewNotFoundError("donor not found")
		}
		return nil, err
	}

	detail := &DonorDetail{Donor: d}
	inv, err := s.invites.LatestActiveForDonor(ctx, d.ID())
	if err == nil {
		detail.ActiveInvite = inv
	} else if !stderrors.Is(err, invite.ErrNotFound) {
		return nil, err
	}
	payments, err := s.payments.ListForDonor(ctx, d.ID())
	if err != nil {
		return nil, err
	}
	detail.Payments = payments
	return detail, nil
}

// RefreshDonor re-pulls the provider subscription and feeds the result
// through the reconciler as a synthetic status update.
func (s *Service) RefreshDonor(ctx context.Context, id uint) (*donor.Donor, error) {
	d, err := s.donors.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, donor.ErrNotFound) {
			return nil, errors.NewNotFoundError("donor not found")
		}
		return nil, err
	}
	if d.SubscriptionID() == "" {
		return nil, errors.NewValidationError("donor has no linked subscription")
	}

	status, nextBilling, err := s.fetchProviderStatus(ctx, d)
	if err != nil {
		d.SetRefreshError(err.Error())
		if updateErr := s.donors.Update(ctx, d); updateErr != nil {
			s.logger.Errorw("failed to record refresh error", "donor_id", d.ID(), "error", updateErr)
		}
		return nil, err
	}

	ev := ingest.NewSubscriptionUpdated(d.Provider(), d.SubscriptionID(), status, nextBilling)
	if err := s.reconciler.Process(ctx, ev); err != nil {
		return nil, err
	}

	fresh, err := s.donors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	fresh.MarkStatusRefreshed(time.Now().UTC())
	if err := s.donors.Update(ctx, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

func (s *Service) fetchProviderStatus(ctx context.Context, d *donor.Donor) (donor.Status, *time.Time, error) {
	switch d.Provider() {
	case donor.ProviderPayPal:
		if s.paypal == nil {
			return "", nil, errors.NewNotConfiguredError("paypal is not configured")
		}
		sub, err := s.paypal.GetSubscription(ctx, d.SubscriptionID())
		if err != nil {
			return "", nil, err
		}
		return ingest.MapPayPalStatus(sub.Status), sub.NextBillingTime, nil
	case donor.ProviderStripe:
		if s.stripe == nil {
			return "", nil, errors.NewNotConfiguredError("stripe is not configured")
		}
		sub, err := s.stripe.GetSubscription(ctx, d.SubscriptionID())
		if err != nil {
			return "", nil, err
		}
		return ingest.MapStripeStatus(sub.Status), sub.CurrentPeriodEnd, nil
	default:
		return "", nil, errors.NewValidationError("unknown provider: " + string(d.Provider()))
	}
}

// ForceInvite re-runs invite provisioning for one donor and surfaces the
// raw error, so an invite-created-but-email-failed outcome reaches the
// operator as a failure while the invite row survives.
func (s *Service) ForceInvite(ctx context.Context, id uint) error {
	d, err := s.donors.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, donor.ErrNotFound) {
			return errors.NewNotFoundError("donor not found")
		}
		return err
	}
	return s.reconciler.EnsureInvite(ctx, d)
}

// VerifyIntegration checks connectivity for one named integration.
// Recipient is only used for the smtp check.
func (s *Service) VerifyIntegration(ctx context.Context, name, recipient string) error {
	if name == "smtp" {
		if s.mailer == nil || !s.mailer.IsConfigured() {
			return errors.NewNotConfiguredError("smtp is not configured")
		}
		if recipient == "" {
			return errors.NewValidationError("recipient address is required for the smtp check")
		}
		return s.mailer.SendTestEmail(recipient)
	}

	verifier, ok := s.verifiers[name]
	if !ok {
		return errors.NewValidationError("unknown integration: " + name)
	}
	return verifier.VerifyCredentials(ctx)
}

// UpdateSettings applies a category of settings and reloads dependents.
func (s *Service) UpdateSettings(ctx context.Context, category string, values map[string]string) error {
	return s.settings.Update(ctx, category, values)
}

// GetSettings returns a category of settings with secrets masked.
func (s *Service) GetSettings(ctx context.Context, category string) (map[string]string, error) {
	return s.settings.Get(ctx, category)
}

// ListEvents returns the newest audit rows.
func (s *Service) ListEvents(ctx context.Context, kind string, limit int) ([]*event.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if kind != "" {
		return s.events.ListByKind(ctx, kind, limit)
	}
	return s.events.ListRecent(ctx, limit)
}

// SendAnnouncement mails a markdown announcement to every active donor and
// reports how many sends succeeded.
func (s *Service) SendAnnouncement(ctx context.Context, subject, markdown string) (sent int, failed int, err error) {
	if subject == "" || markdown == "" {
		return 0, 0, errors.NewValidationError("subject and body are required")
	}

	donors, err := s.donors.List(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list donors: %w", err)
	}

	for _, d := range donors {
		if d.Status() != donor.StatusActive || d.Email() == "" {
			continue
		}
		if err := s.notifier.SendAnnouncement(ctx, d.Email(), subject, markdown); err != nil {
			s.logger.Errorw("announcement send failed", "donor_id", d.ID(), "error", err)
			failed++
			continue
		}
		sent++
	}

	if logErr := s.events.Log(ctx, event.KindAnnouncementSent, map[string]any{
		"subject": subject,
		"sent":    sent,
		"failed":  failed,
	}); logErr != nil {
		s.logger.Errorw("failed to log announcement", "error", logErr)
	}
	return sent, failed, nil
}

// CreateShareLink mints a bootstrap share link.
func (s *Service) CreateShareLink(ctx context.Context, donorID *uint, prospectEmail, note string, expiresAt *time.Time) (*sharelink.ShareLink, error) {
	if donorID != nil {
		if _, err := s.donors.GetByID(ctx, *donorID); err != nil {
			if stderrors.Is(err, donor.ErrNotFound) {
				return nil, errors.NewNotFoundError("donor not found")
			}
			return nil, err
		}
	}

	link, err := sharelink.NewShareLink(donorID, prospectEmail, note, expiresAt)
	if err != nil {
		return nil, err
	}
	if err := s.shareLinks.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to store share link: %w", err)
	}
	return link, nil
}

// ListShareLinks returns all share links, newest first.
func (s *Service) ListShareLinks(ctx context.Context) ([]*sharelink.ShareLink, error) {
	return s.shareLinks.List(ctx)
}

// DeleteShareLink removes a share link.
func (s *Service) DeleteShareLink(ctx context.Context, id uint) error {
	return s.shareLinks.Delete(ctx, id)
}

// DeleteDonor removes a donor and its dependent rows.
func (s *Service) DeleteDonor(ctx context.Context, id uint) error {
	deleted, err := s.donors.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return errors.NewNotFoundError("donor not found")
	}
	return nil
}

var _ CredentialVerifier = (*paypal.Client)(nil)
var _ CredentialVerifier = (*stripe.Client)(nil)
