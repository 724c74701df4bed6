// Package reconciler is the state machine between provider subscription
// events and the donor record, Plex access, and lifecycle email. All event
// processing is serialized per subscription; side-effect failures are
// recorded on the donor and retried by the sweeper rather than failing the
// webhook acknowledgement.
package reconciler

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"plexward/internal/application/ingest"
	"plexward/internal/domain/donor"
	"plexward/internal/domain/event"
	"plexward/internal/domain/invite"
	"plexward/internal/domain/payment"
	"plexward/internal/infrastructure/paypal"
	"plexward/internal/infrastructure/plex"
	"plexward/internal/shared/biztime"
	"plexward/internal/shared/logger"
)

// AccessGateway is the slice of the access controller the reconciler drives.
type AccessGateway interface {
	Configured(ctx context.Context) bool
	InviteDonor(ctx context.Context, d *donor.Donor, sections []string) (*plex.InviteResult, error)
	CancelInvite(ctx context.Context, plexInviteID string) (bool, error)
	RevokeDonor(ctx context.Context, d *donor.Donor) (plex.RevokeOutcome, error)
	ListUsers(ctx context.Context) ([]plex.User, error)
}

// Mailer is the slice of the notifier the reconciler drives.
type Mailer interface {
	SendInvite(ctx context.Context, d *donor.Donor, inviteURL string) error
	SendThankYou(ctx context.Context, d *donor.Donor) error
	SendCancellationScheduled(ctx context.Context, d *donor.Donor, accessUntil time.Time) error
	SendPaymentFailed(ctx context.Context, d *donor.Donor, attemptCount int) error
	NotifyAdmin(ctx context.Context, subject, body string) error
}

// SubscriptionFetcher resolves a paid-through instant when a termination
// event arrives without one.
type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*paypal.Subscription, error)
}

// Config tunes the reconciler.
type Config struct {
	// InviteStaleThreshold ages out invites that were never accepted.
	// Zero disables staleness.
	InviteStaleThreshold time.Duration
	// LockTimeout bounds how long an event waits behind an in-flight one
	// for the same subscription.
	LockTimeout time.Duration
}

type Reconciler struct {
	donors   donor.Repository
	invites  invite.Repository
	payments payment.Repository
	events   event.Repository
	access   AccessGateway
	mailer   Mailer
	paypal   SubscriptionFetcher
	cfg      Config
	locks    *keyedLocks
	logger   logger.Interface
}

func New(
	donors donor.Repository,
	invites invite.Repository,
	payments payment.Repository,
	events event.Repository,
	access AccessGateway,
	mailer Mailer,
	paypalFetcher SubscriptionFetcher,
	cfg Config,
	log logger.Interface,
) *Reconciler {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 60 * time.Second
	}
	return &Reconciler{
		donors:   donors,
		invites:  invites,
		payments: payments,
		events:   events,
		access:   access,
		mailer:   mailer,
		paypal:   paypalFetcher,
		cfg:      cfg,
		locks:    newKeyedLocks(cfg.LockTimeout),
		logger:   log,
	}
}

// Process applies one provider event. Store failures are returned so the
// webhook endpoint answers non-2xx and the provider redelivers; failures of
// outbound side effects are absorbed after being recorded.
func (r *Reconciler) Process(ctx context.Context, ev ingest.SubscriptionEvent) error {
	key := string(ev.ProviderName()) + ":" + ev.SubscriptionID()
	release, err := r.locks.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()

	r.logger.Infow("processing event",
		"kind", ev.Kind(),
		"provider", string(ev.ProviderName()),
		"subscription_id", ev.SubscriptionID(),
	)

	switch typed := ev.(type) {
	case ingest.SubscriptionActivated:
		return r.handleActivated(ctx, typed)
	case ingest.SubscriptionUpdated:
		return r.handleUpdated(ctx, typed)
	case ingest.SubscriptionTerminated:
		return r.handleTerminated(ctx, typed)
	case ingest.PaymentSucceeded:
		return r.handlePaymentSucceeded(ctx, typed)
	case ingest.PaymentFailed:
		return r.handlePaymentFailed(ctx, typed)
	default:
		r.logger.Warnw("unknown event type dropped", "kind", ev.Kind())
		return nil
	}
}

func (r *Reconciler) handleActivated(ctx context.Context, ev ingest.SubscriptionActivated) error {
	d, created, err := r.findOrCreateDonor(ctx, ev.ProviderName(), ev.SubscriptionID(), ev.Subscriber.Email, ev.Subscriber.Name)
	if err != nil {
		return err
	}
	if d == nil {
		r.audit(ctx, event.KindInviteAutoSkipped, map[string]any{
			"provider":        string(ev.ProviderName()),
			"subscription_id": ev.SubscriptionID(),
			"reason":          "no_subscriber_email",
		})
		return nil
	}

	d.Activate(ev.LastPaymentAt)
	if err := r.donors.Update(ctx, d); err != nil {
		return fmt.Errorf("failed to persist activation: %w", err)
	}

	if created {
		r.audit(ctx, event.KindDonorCreated, r.donorPayload(d))
		r.notifyAdmin(ctx, "New donor", fmt.Sprintf("Donor %s (%s) was created from a %s subscription.", d.Name(), d.Email(), d.Provider()))
	}

	r.ensureInviteAbsorbed(ctx, d)
	return nil
}

func (r *Reconciler) handleUpdated(ctx context.Context, ev ingest.SubscriptionUpdated) error {
	d, err := r.donors.GetBySubscriptionID(ctx, ev.ProviderName(), ev.SubscriptionID())
	if err != nil {
		if stderrors.Is(err, donor.ErrNotFound) {
			r.logger.Infow("status update for unknown subscription dropped",
				"subscription_id", ev.SubscriptionID())
			return nil
		}
		return err
	}

	previous := d.Status()
	if err := d.SetStatus(ev.Status); err != nil {
		r.logger.Warnw("rejected status update", "status", string(ev.Status), "error", err)
		return nil
	}
	if err := r.donors.Update(ctx, d); err != nil {
		return fmt.Errorf("failed to persist status update: %w", err)
	}

	payload := r.donorPayload(d)
	payload["from"] = string(previous)
	payload["to"] = string(ev.Status)
	r.audit(ctx, event.KindSubscriptionUpdated, payload)
	return nil
}

func (r *Reconciler) handleTerminated(ctx context.Context, ev ingest.SubscriptionTerminated) error {
	d, err := r.donors.GetBySubscriptionID(ctx, ev.ProviderName(), ev.SubscriptionID())
	if err != nil {
		if stderrors.Is(err, donor.ErrNotFound) {
			r.logger.Infow("termination for unknown subscription dropped",
				"subscription_id", ev.SubscriptionID())
			return nil
		}
		return err
	}

	accessUntil := r.resolveAccessUntil(ctx, ev)
	d.Terminate(ev.Cause, &accessUntil)
	if err := r.donors.Update(ctx, d); err != nil {
		return fmt.Errorf("failed to persist termination: %w", err)
	}

	payload := r.donorPayload(d)
	payload["cause"] = string(ev.Cause)
	payload["access_until"] = accessUntil.Format(time.RFC3339)
	r.audit(ctx, event.KindSubscriptionCancelled, payload)

	if err := r.mailer.SendCancellationScheduled(ctx, d, accessUntil); err != nil {
		r.logger.Errorw("cancellation email failed", "donor_id", d.ID(), "error", err)
	}

	if !accessUntil.After(biztime.NowUTC()) {
		r.ensureRevokedAbsorbed(ctx, d)
		d.ClearAccessExpiration()
		if err := r.donors.Update(ctx, d); err != nil {
			return fmt.Errorf("failed to clear access expiration: %w", err)
		}
	}
	return nil
}

func (r *Reconciler) handlePaymentSucceeded(ctx context.Context, ev ingest.PaymentSucceeded) error {
	d, created, err := r.findOrCreateDonor(ctx, ev.ProviderName(), ev.SubscriptionID(), ev.PayerEmail, "")
	if err != nil {
		return err
	}
	if d == nil {
		r.audit(ctx, event.KindPaymentRecorded, map[string]any{
			"provider":        string(ev.ProviderName()),
			"subscription_id": ev.SubscriptionID(),
			"payment_id":      ev.PaymentID,
			"reason":          "no_matching_donor",
		})
		return nil
	}

	p, err := payment.NewPayment(d.ID(), ev.ProviderName(), ev.PaymentID, ev.Amount, ev.Currency, ev.PaidAt)
	if err != nil {
		return err
	}
	recorded, paymentCreated, err := r.payments.Record(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	if !paymentCreated {
		// Redelivery of an already-applied payment; nothing more to do.
		r.logger.Infow("duplicate payment dropped",
			"payment_id", ev.PaymentID,
			"recorded_at", recorded.CreatedAt(),
		)
		return nil
	}

	previous := d.Status()
	paidAt := ev.PaidAt
	d.Activate(&paidAt)

	ownedNow := false
	if d.HadPreexistingAccess() {
		d.ClearPreexistingAccess()
		ownedNow = true
	}
	if err := r.donors.Update(ctx, d); err != nil {
		return fmt.Errorf("failed to persist payment activation: %w", err)
	}

	payload := r.donorPayload(d)
	payload["payment_id"] = ev.PaymentID
	payload["amount"] = ev.Amount
	payload["currency"] = ev.Currency
	r.audit(ctx, event.KindPaymentRecorded, payload)

	if ownedNow {
		r.audit(ctx, event.KindTransitionedToSub, r.donorPayload(d))
	}
	if created {
		r.audit(ctx, event.KindDonorCreated, r.donorPayload(d))
		r.notifyAdmin(ctx, "New donor", fmt.Sprintf("Donor %s (%s) was created from a %s payment.", d.Name(), d.Email(), d.Provider()))
	}
	if previous != donor.StatusActive {
		if err := r.mailer.SendThankYou(ctx, d); err != nil {
			r.logger.Errorw("thank-you email failed", "donor_id", d.ID(), "error", err)
		}
		r.audit(ctx, event.KindSubscriptionStarted, r.donorPayload(d))
		r.notifyAdmin(ctx, "Subscription started", fmt.Sprintf("Donor %s (%s) is now active.", d.Name(), d.Email()))
	}

	r.ensureInviteAbsorbed(ctx, d)
	return nil
}

func (r *Reconciler) handlePaymentFailed(ctx context.Context, ev ingest.PaymentFailed) error {
	d, err := r.donors.GetBySubscriptionID(ctx, ev.ProviderName(), ev.SubscriptionID())
	if err != nil {
		if stderrors.Is(err, donor.ErrNotFound) {
			r.logger.Infow("payment failure for unknown subscription dropped",
				"subscription_id", ev.SubscriptionID())
			return nil
		}
		return err
	}

	payload := r.donorPayload(d)
	payload["attempt_count"] = ev.AttemptCount
	r.audit(ctx, event.KindPaymentFailed, payload)

	if err := r.mailer.SendPaymentFailed(ctx, d, ev.AttemptCount); err != nil {
		r.logger.Errorw("payment-failed email failed", "donor_id", d.ID(), "error", err)
	}
	return nil
}

// findOrCreateDonor loads the donor for the subscription, creating one when
// the event carries a subscriber email. (nil, false, nil) means the donor is
// unknown and cannot be created.
func (r *Reconciler) findOrCreateDonor(ctx context.Context, provider donor.Provider, subscriptionID, email, name string) (*donor.Donor, bool, error) {
	d, err := r.donors.GetBySubscriptionID(ctx, provider, subscriptionID)
	if err == nil {
		if email != "" || name != "" {
			d.UpdateContact(email, name)
		}
		return d, false, nil
	}
	if !stderrors.Is(err, donor.ErrNotFound) {
		return nil, false, err
	}
	if email == "" {
		return nil, false, nil
	}

	d, err = r.donors.UpsertBySubscription(ctx, provider, subscriptionID, donor.UpsertFields{
		Email: email,
		Name:  name,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create donor: %w", err)
	}
	return d, true, nil
}

// resolveAccessUntil picks the grace-window end: the event's instant, then a
// provider lookup, then now.
func (r *Reconciler) resolveAccessUntil(ctx context.Context, ev ingest.SubscriptionTerminated) time.Time {
	if ev.EffectiveAt != nil {
		return *ev.EffectiveAt
	}
	if ev.ProviderName() == donor.ProviderPayPal && r.paypal != nil {
		sub, err := r.paypal.GetSubscription(ctx, ev.SubscriptionID())
		if err != nil {
			r.logger.Warnw("failed to fetch subscription for grace window",
				"subscription_id", ev.SubscriptionID(),
				"error", err,
			)
		} else if sub.NextBillingTime != nil {
			return *sub.NextBillingTime
		}
	}
	return biztime.NowUTC()
}

func (r *Reconciler) donorPayload(d *donor.Donor) map[string]any {
	return map[string]any{
		"donor_id":        d.ID(),
		"provider":        string(d.Provider()),
		"subscription_id": d.SubscriptionID(),
		"status":          string(d.Status()),
	}
}

// audit appends an event row. Audit failures are logged and absorbed.
func (r *Reconciler) audit(ctx context.Context, kind string, payload map[string]any) {
	if err := r.events.Log(ctx, kind, payload); err != nil {
		r.logger.Errorw("failed to log audit event", "kind", kind, "error", err)
	}
}

func (r *Reconciler) notifyAdmin(ctx context.Context, subject, body string) {
	if err := r.mailer.NotifyAdmin(ctx, subject, body); err != nil {
		r.logger.Errorw("admin notification failed", "subject", subject, "error", err)
	}
}
