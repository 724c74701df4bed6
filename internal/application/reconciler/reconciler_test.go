package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plexward/internal/application/ingest"
	"plexward/internal/domain/donor"
	"plexward/internal/domain/event"
	"plexward/internal/domain/invite"
	"plexward/internal/domain/payment"
	"plexward/internal/infrastructure/paypal"
	"plexward/internal/infrastructure/plex"
	"plexward/internal/infrastructure/stripe"
	"plexward/internal/shared/biztime"
	"plexward/internal/shared/logger"
)

func noopLogger() logger.Interface {
	return logger.NewLoggerWithSlog(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// ---- fakes ----

type fakeDonors struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*donor.Donor
}

func newFakeDonors() *fakeDonors {
	return &fakeDonors{byID: make(map[uint]*donor.Donor)}
}

func (f *fakeDonors) add(d *donor.Donor) *donor.Donor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	d.SetID(f.nextID)
	f.byID[d.ID()] = d
	return d
}

func (f *fakeDonors) UpsertBySubscription(ctx context.Context, provider donor.Provider, subscriptionID string, fields donor.UpsertFields) (*donor.Donor, error) {
	f.mu.Lock()
	for _, d := range f.byID {
		if d.Provider() == provider && d.SubscriptionID() == subscriptionID {
			f.mu.Unlock()
			d.UpdateContact(fields.Email, fields.Name)
			return d, nil
		}
	}
	f.mu.Unlock()

	d, err := donor.NewDonor(provider, subscriptionID, fields.Email, fields.Name)
	if err != nil {
		return nil, err
	}
	return f.add(d), nil
}

func (f *fakeDonors) GetByID(ctx context.Context, id uint) (*donor.Donor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.byID[id]; ok {
		return d, nil
	}
	return nil, donor.ErrNotFound
}

func (f *fakeDonors) GetBySubscriptionID(ctx context.Context, provider donor.Provider, subscriptionID string) (*donor.Donor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.byID {
		if d.Provider() == provider && d.SubscriptionID() == subscriptionID {
			return d, nil
		}
	}
	return nil, donor.ErrNotFound
}

func (f *fakeDonors) GetByEmail(ctx context.Context, email string) (*donor.Donor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.byID {
		if d.Email() == email {
			return d, nil
		}
	}
	return nil, donor.ErrNotFound
}

func (f *fakeDonors) Update(ctx context.Context, d *donor.Donor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[d.ID()] = d
	return nil
}

func (f *fakeDonors) List(ctx context.Context) ([]*donor.Donor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*donor.Donor, 0, len(f.byID))
	for _, d := range f.byID {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeDonors) ListExpiredAccess(ctx context.Context, now time.Time) ([]*donor.Donor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*donor.Donor
	for _, d := range f.byID {
		if d.AccessExpired(now) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDonors) ListForStatusRefresh(ctx context.Context, staleBefore time.Time) ([]*donor.Donor, error) {
	return nil, nil
}

func (f *fakeDonors) ListWithPlexIdentity(ctx context.Context) ([]*donor.Donor, error) {
	return nil, nil
}

func (f *fakeDonors) Delete(ctx context.Context, id uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return false, nil
	}
	delete(f.byID, id)
	return true, nil
}

type fakeInvites struct {
	mu       sync.Mutex
	nextID   uint
	byID     map[uint]*invite.Invite
	raceOnce bool
}

func newFakeInvites() *fakeInvites {
	return &fakeInvites{byID: make(map[uint]*invite.Invite)}
}

func (f *fakeInvites) Create(ctx context.Context, inv *invite.Invite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.raceOnce {
		f.raceOnce = false
		return invite.ErrActiveInviteExists
	}
	now := biztime.NowUTC()
	for _, existing := range f.byID {
		if existing.DonorID() == inv.DonorID() && existing.RevokedAt() == nil {
			existing.Revoke(now, false)
		}
	}
	f.nextID++
	inv.SetID(f.nextID)
	f.byID[inv.ID()] = inv
	return nil
}

func (f *fakeInvites) GetByID(ctx context.Context, id uint) (*invite.Invite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if inv, ok := f.byID[id]; ok {
		return inv, nil
	}
	return nil, invite.ErrNotFound
}

func (f *fakeInvites) LatestActiveForDonor(ctx context.Context, donorID uint) (*invite.Invite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *invite.Invite
	for _, inv := range f.byID {
		if inv.DonorID() == donorID && inv.RevokedAt() == nil {
			if latest == nil || inv.ID() > latest.ID() {
				latest = inv
			}
		}
	}
	if latest == nil {
		return nil, invite.ErrNotFound
	}
	return latest, nil
}

func (f *fakeInvites) Update(ctx context.Context, inv *invite.Invite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[inv.ID()] = inv
	return nil
}

func (f *fakeInvites) MarkEmailSent(ctx context.Context, id uint) (*invite.Invite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.byID[id]
	if !ok {
		return nil, invite.ErrNotFound
	}
	inv.MarkEmailSent(biztime.NowUTC())
	return inv, nil
}

func (f *fakeInvites) Revoke(ctx context.Context, id uint, plexRevoked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.byID[id]
	if !ok {
		return invite.ErrNotFound
	}
	inv.Revoke(biztime.NowUTC(), plexRevoked)
	return nil
}

func (f *fakeInvites) ListForDonor(ctx context.Context, donorID uint) ([]*invite.Invite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*invite.Invite
	for _, inv := range f.byID {
		if inv.DonorID() == donorID {
			out = append(out, inv)
		}
	}
	return out, nil
}

type fakePayments struct {
	mu   sync.Mutex
	rows map[string]*payment.Payment
}

func newFakePayments() *fakePayments {
	return &fakePayments{rows: make(map[string]*payment.Payment)}
}

func (f *fakePayments) Record(ctx context.Context, p *payment.Payment) (*payment.Payment, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := string(p.Provider()) + ":" + p.ProviderPaymentID()
	if existing, ok := f.rows[key]; ok {
		return existing, false, nil
	}
	p.SetID(uint(len(f.rows) + 1))
	f.rows[key] = p
	return p, true, nil
}

func (f *fakePayments) ListForDonor(ctx context.Context, donorID uint) ([]*payment.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*payment.Payment
	for _, p := range f.rows {
		if p.DonorID() == donorID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePayments) GetByProviderPaymentID(ctx context.Context, provider donor.Provider, providerPaymentID string) (*payment.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.rows[string(provider)+":"+providerPaymentID]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("payment not found")
}

type auditRow struct {
	kind    string
	payload map[string]any
}

type fakeEvents struct {
	mu   sync.Mutex
	rows []auditRow
}

func (f *fakeEvents) Log(ctx context.Context, kind string, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, auditRow{kind: kind, payload: payload})
	return nil
}

func (f *fakeEvents) ListRecent(ctx context.Context, limit int) ([]*event.Event, error) {
	return nil, nil
}

func (f *fakeEvents) ListByKind(ctx context.Context, kind string, limit int) ([]*event.Event, error) {
	return nil, nil
}

func (f *fakeEvents) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.rows))
	for i, row := range f.rows {
		out[i] = row.kind
	}
	return out
}

func (f *fakeEvents) last(kind string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].kind == kind {
			return f.rows[i].payload
		}
	}
	return nil
}

type fakeAccess struct {
	mu           sync.Mutex
	unconfigured bool
	users        []plex.User
	inviteErr    error
	invited      int
	revoked      int
	cancelled    []string
}

func (f *fakeAccess) Configured(ctx context.Context) bool { return !f.unconfigured }

func (f *fakeAccess) InviteDonor(ctx context.Context, d *donor.Donor, sections []string) (*plex.InviteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inviteErr != nil {
		return nil, f.inviteErr
	}
	f.invited++
	return &plex.InviteResult{
		PlexInviteID: fmt.Sprintf("plex-inv-%d", f.invited),
		InviteURL:    "https://app.plex.tv/invite/123",
		Status:       "pending",
		InvitedAt:    biztime.NowUTC(),
	}, nil
}

func (f *fakeAccess) CancelInvite(ctx context.Context, plexInviteID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, plexInviteID)
	return true, nil
}

func (f *fakeAccess) RevokeDonor(ctx context.Context, d *donor.Donor) (plex.RevokeOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked++
	return plex.RevokeSuccess, nil
}

func (f *fakeAccess) ListUsers(ctx context.Context) ([]plex.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users, nil
}

type fakeMailer struct {
	mu            sync.Mutex
	failInvite    error
	invites       int
	lastInviteURL string
	thankYous     int
	cancellations int
	paymentFails  int
	adminNotices  int
}

func (f *fakeMailer) SendInvite(ctx context.Context, d *donor.Donor, inviteURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInvite != nil {
		return f.failInvite
	}
	f.invites++
	f.lastInviteURL = inviteURL
	return nil
}

func (f *fakeMailer) SendThankYou(ctx context.Context, d *donor.Donor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.thankYous++
	return nil
}

func (f *fakeMailer) SendCancellationScheduled(ctx context.Context, d *donor.Donor, accessUntil time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancellations++
	return nil
}

func (f *fakeMailer) SendPaymentFailed(ctx context.Context, d *donor.Donor, attemptCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paymentFails++
	return nil
}

func (f *fakeMailer) NotifyAdmin(ctx context.Context, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adminNotices++
	return nil
}

type fakeFetcher struct {
	sub *paypal.Subscription
	err error
}

func (f *fakeFetcher) GetSubscription(ctx context.Context, subscriptionID string) (*paypal.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sub, nil
}

// ---- harness ----

type harness struct {
	donors   *fakeDonors
	invites  *fakeInvites
	payments *fakePayments
	events   *fakeEvents
	access   *fakeAccess
	mailer   *fakeMailer
	rec      *Reconciler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		donors:   newFakeDonors(),
		invites:  newFakeInvites(),
		payments: newFakePayments(),
		events:   &fakeEvents{},
		access:   &fakeAccess{},
		mailer:   &fakeMailer{},
	}
	h.rec = New(h.donors, h.invites, h.payments, h.events, h.access, h.mailer, &fakeFetcher{}, Config{
		LockTimeout: time.Second,
	}, noopLogger())
	return h
}

func stripeEnvelope(eventType, object string) *stripe.Event {
	ev := &stripe.Event{Type: eventType}
	ev.Data.Object = json.RawMessage(object)
	return ev
}

func translateStripe(t *testing.T, eventType, object string) ingest.SubscriptionEvent {
	t.Helper()
	ev, err := ingest.TranslateStripe(stripeEnvelope(eventType, object))
	require.NoError(t, err)
	require.NotNil(t, ev)
	return ev
}

func activatedEvent(t *testing.T, subID, email, name string) ingest.SubscriptionEvent {
	t.Helper()
	return translateStripe(t, "checkout.session.completed", fmt.Sprintf(
		`{"subscription": %q, "customer_details": {"email": %q, "name": %q}}`, subID, email, name))
}

func paymentEvent(t *testing.T, subID, paymentID, email string) ingest.SubscriptionEvent {
	t.Helper()
	return translateStripe(t, "invoice.payment_succeeded", fmt.Sprintf(
		`{"id": %q, "subscription": %q, "customer_email": %q, "amount_paid": 500, "currency": "usd", "created": 1900000000}`,
		paymentID, subID, email))
}

func terminatedEvent(t *testing.T, subID string, periodEnd time.Time) ingest.SubscriptionEvent {
	t.Helper()
	return translateStripe(t, "customer.subscription.deleted", fmt.Sprintf(
		`{"id": %q, "current_period_end": %d}`, subID, periodEnd.Unix()))
}

// ---- tests ----

func TestProcess_ActivationCreatesDonorAndInvite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	err := h.rec.Process(ctx, activatedEvent(t, "sub_1", "donor@example.com", "Ada Lovelace"))
	require.NoError(t, err)

	d, err := h.donors.GetBySubscriptionID(ctx, donor.ProviderStripe, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, donor.StatusActive, d.Status())
	assert.Equal(t, "donor@example.com", d.Email())

	inv, err := h.invites.LatestActiveForDonor(ctx, d.ID())
	require.NoError(t, err)
	assert.Equal(t, "https://app.plex.tv/invite/123", inv.InviteURL())
	assert.NotNil(t, inv.EmailSentAt())

	assert.Equal(t, 1, h.access.invited)
	assert.Equal(t, 1, h.mailer.invites)
	assert.Contains(t, h.events.kinds(), event.KindDonorCreated)
	assert.Contains(t, h.events.kinds(), event.KindInviteCreated)
}

func TestProcess_ActivationIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.rec.Process(ctx, activatedEvent(t, "sub_1", "donor@example.com", "")))
	require.NoError(t, h.rec.Process(ctx, activatedEvent(t, "sub_1", "donor@example.com", "")))

	// The second delivery reuses the invite on file.
	assert.Equal(t, 1, h.access.invited)
	assert.Equal(t, 1, h.mailer.invites)
	assert.Contains(t, h.events.kinds(), event.KindInviteReused)
}

func TestProcess_ActivationWithoutEmailSkipped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.rec.Process(ctx, translateStripe(t, "checkout.session.completed", `{"subscription": "sub_2"}`)))

	_, err := h.donors.GetBySubscriptionID(ctx, donor.ProviderStripe, "sub_2")
	assert.ErrorIs(t, err, donor.ErrNotFound)
	payload := h.events.last(event.KindInviteAutoSkipped)
	require.NotNil(t, payload)
	assert.Equal(t, "no_subscriber_email", payload["reason"])
}

func TestProcess_PaymentActivatesAndThanks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	err := h.rec.Process(ctx, paymentEvent(t, "sub_1", "in_1", "donor@example.com"))
	require.NoError(t, err)

	d, err := h.donors.GetBySubscriptionID(ctx, donor.ProviderStripe, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, donor.StatusActive, d.Status())
	require.NotNil(t, d.LastPaymentAt())

	assert.Equal(t, 1, h.mailer.thankYous)
	assert.Contains(t, h.events.kinds(), event.KindPaymentRecorded)
	assert.Contains(t, h.events.kinds(), event.KindSubscriptionStarted)
}

func TestProcess_DuplicatePaymentDropped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.rec.Process(ctx, paymentEvent(t, "sub_1", "in_1", "donor@example.com")))
	require.NoError(t, h.rec.Process(ctx, paymentEvent(t, "sub_1", "in_1", "donor@example.com")))

	assert.Len(t, h.payments.rows, 1)
	assert.Equal(t, 1, h.mailer.thankYous)
}

func TestProcess_PaymentClearsPreexistingAccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	d, err := donor.NewDonor(donor.ProviderStripe, "sub_1", "donor@example.com", "")
	require.NoError(t, err)
	d.MarkPreexistingAccess()
	h.donors.add(d)

	require.NoError(t, h.rec.Process(ctx, paymentEvent(t, "sub_1", "in_1", "donor@example.com")))

	fresh, err := h.donors.GetByID(ctx, d.ID())
	require.NoError(t, err)
	assert.False(t, fresh.HadPreexistingAccess())
	assert.Contains(t, h.events.kinds(), event.KindTransitionedToSub)
}

func TestProcess_TerminationKeepsAccessThroughPaidWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.rec.Process(ctx, activatedEvent(t, "sub_1", "donor@example.com", "")))
	future := biztime.NowUTC().Add(720 * time.Hour).Truncate(time.Second)

	err := h.rec.Process(ctx, terminatedEvent(t, "sub_1", future))
	require.NoError(t, err)

	d, err := h.donors.GetBySubscriptionID(ctx, donor.ProviderStripe, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, donor.StatusCancelled, d.Status())
	require.NotNil(t, d.AccessExpiresAt())
	assert.Equal(t, future.Unix(), d.AccessExpiresAt().Unix())

	assert.Equal(t, 1, h.mailer.cancellations)
	assert.Zero(t, h.access.revoked, "access must survive through the paid window")
}

func TestProcess_TerminationWithElapsedWindowRevokes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.rec.Process(ctx, activatedEvent(t, "sub_1", "donor@example.com", "")))
	past := biztime.NowUTC().Add(-time.Hour)

	err := h.rec.Process(ctx, terminatedEvent(t, "sub_1", past))
	require.NoError(t, err)

	d, err := h.donors.GetBySubscriptionID(ctx, donor.ProviderStripe, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, donor.StatusCancelled, d.Status())
	assert.Nil(t, d.AccessExpiresAt())

	assert.Equal(t, 1, h.access.revoked)
	assert.Contains(t, h.events.kinds(), event.KindPlexAccessRevoked)
}

func TestProcess_StatusUpdate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	t.Run("unknown subscription is dropped", func(t *testing.T) {
		ev := ingest.NewSubscriptionUpdated(donor.ProviderStripe, "sub_missing", donor.StatusPastDue, nil)
		assert.NoError(t, h.rec.Process(ctx, ev))
		assert.Empty(t, h.events.kinds())
	})

	t.Run("known subscription persists the transition", func(t *testing.T) {
		require.NoError(t, h.rec.Process(ctx, activatedEvent(t, "sub_1", "donor@example.com", "")))

		ev := ingest.NewSubscriptionUpdated(donor.ProviderStripe, "sub_1", donor.StatusPastDue, nil)
		require.NoError(t, h.rec.Process(ctx, ev))

		d, err := h.donors.GetBySubscriptionID(ctx, donor.ProviderStripe, "sub_1")
		require.NoError(t, err)
		assert.Equal(t, donor.StatusPastDue, d.Status())

		payload := h.events.last(event.KindSubscriptionUpdated)
		require.NotNil(t, payload)
		assert.Equal(t, "active", payload["from"])
		assert.Equal(t, "past_due", payload["to"])
	})
}

func TestProcess_PaymentFailedNotifies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.rec.Process(ctx, activatedEvent(t, "sub_1", "donor@example.com", "")))

	ev := translateStripe(t, "invoice.payment_failed", `{"id": "in_9", "subscription": "sub_1", "attempt_count": 2}`)
	require.NoError(t, h.rec.Process(ctx, ev))

	assert.Equal(t, 1, h.mailer.paymentFails)
	payload := h.events.last(event.KindPaymentFailed)
	require.NotNil(t, payload)
	assert.Equal(t, 2, payload["attempt_count"])
}

func TestEnsureInvite_DonorAlreadyOnServer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	d, err := donor.NewDonor(donor.ProviderStripe, "sub_1", "donor@example.com", "")
	require.NoError(t, err)
	d.Activate(nil)
	h.donors.add(d)
	h.access.users = []plex.User{{Email: "donor@example.com", UUID: "uuid-9"}}

	require.NoError(t, h.rec.EnsureInvite(ctx, d))

	assert.Zero(t, h.access.invited)
	assert.Zero(t, h.mailer.invites)
	assert.Equal(t, "uuid-9", d.PlexAccountID())
	assert.True(t, d.HadPreexistingAccess(), "share this system never granted must be flagged")

	payload := h.events.last(event.KindInviteAutoSkipped)
	require.NotNil(t, payload)
	assert.Equal(t, "already_on_server", payload["reason"])
}

func TestEnsureInvite_PendingPlexInviteSkipped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	d, err := donor.NewDonor(donor.ProviderStripe, "sub_1", "donor@example.com", "")
	require.NoError(t, err)
	d.Activate(nil)
	h.donors.add(d)
	h.access.users = []plex.User{{Email: "donor@example.com", Pending: true}}

	require.NoError(t, h.rec.EnsureInvite(ctx, d))

	assert.Zero(t, h.access.invited)
	payload := h.events.last(event.KindInviteAutoSkipped)
	require.NotNil(t, payload)
	assert.Equal(t, "invite_pending", payload["reason"])
}

func TestEnsureInvite_ConcurrentCreateReusesWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	d, err := donor.NewDonor(donor.ProviderStripe, "sub_1", "donor@example.com", "")
	require.NoError(t, err)
	d.Activate(nil)
	h.donors.add(d)
	h.invites.raceOnce = true

	require.NoError(t, h.rec.EnsureInvite(ctx, d))

	// The loser's Plex invite is withdrawn and no second row is stored.
	require.Len(t, h.access.cancelled, 1)
	assert.Empty(t, h.invites.byID)
	payload := h.events.last(event.KindInviteReused)
	require.NotNil(t, payload)
	assert.Equal(t, "concurrent_create", payload["reason"])
}

func TestEnsureInvite_EmailFailureWithdrawsFreshInvite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	d, err := donor.NewDonor(donor.ProviderStripe, "sub_1", "donor@example.com", "")
	require.NoError(t, err)
	d.Activate(nil)
	h.donors.add(d)
	h.mailer.failInvite = fmt.Errorf("smtp connect refused")

	err = h.rec.EnsureInvite(ctx, d)
	require.Error(t, err)

	assert.Len(t, h.access.cancelled, 1)
	for _, inv := range h.invites.byID {
		assert.NotNil(t, inv.RevokedAt())
		assert.NotNil(t, inv.PlexRevokedAt())
	}
	assert.Contains(t, h.events.kinds(), event.KindInviteEmailFailed)
}

func TestEnsureInvite_PlexNotConfigured(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	d, err := donor.NewDonor(donor.ProviderStripe, "sub_1", "donor@example.com", "")
	require.NoError(t, err)
	d.Activate(nil)
	h.donors.add(d)
	h.access.unconfigured = true

	require.NoError(t, h.rec.EnsureInvite(ctx, d))

	assert.Zero(t, h.access.invited)
	payload := h.events.last(event.KindInviteAutoSkipped)
	require.NotNil(t, payload)
	assert.Equal(t, "plex_not_configured", payload["reason"])
}

func TestEnsureRevoked_PreexistingAccessPreserved(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	d, err := donor.NewDonor(donor.ProviderStripe, "sub_1", "donor@example.com", "")
	require.NoError(t, err)
	d.MarkPreexistingAccess()
	h.donors.add(d)

	require.NoError(t, h.rec.EnsureRevoked(ctx, d))

	assert.Zero(t, h.access.revoked)
	assert.Contains(t, h.events.kinds(), event.KindPlexAccessPreserved)
}

func TestExpireAccess(t *testing.T) {
	t.Run("expired trial transitions to trial_expired and loses access", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()

		d, err := donor.NewDonor(donor.ProviderStripe, "sub_1", "donor@example.com", "")
		require.NoError(t, err)
		past := biztime.NowUTC().Add(-time.Hour)
		d.Terminate(donor.CauseCancelled, &past)
		require.NoError(t, d.SetStatus(donor.StatusTrial))
		h.donors.add(d)

		require.NoError(t, h.rec.ExpireAccess(ctx, d))

		fresh, err := h.donors.GetByID(ctx, d.ID())
		require.NoError(t, err)
		assert.Equal(t, donor.StatusTrialExpired, fresh.Status())
		assert.Nil(t, fresh.AccessExpiresAt())
		assert.Equal(t, 1, h.access.revoked)
	})

	t.Run("payment racing the sweep is a no-op", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()

		d, err := donor.NewDonor(donor.ProviderStripe, "sub_1", "donor@example.com", "")
		require.NoError(t, err)
		d.Activate(nil)
		h.donors.add(d)

		require.NoError(t, h.rec.ExpireAccess(ctx, d))
		assert.Zero(t, h.access.revoked)
		assert.Equal(t, donor.StatusActive, d.Status())
	})
}
