package donor

import (
	"fmt"
	"time"

	"plexward/internal/shared/biztime"
	"plexward/internal/shared/utils"
)

// Donor represents the donor aggregate root: one paying member whose
// subscription grants Plex library access.
type Donor struct {
	id    uint
	email string
	name  string

	provider             Provider
	subscriptionID       string
	stripeCustomerID     string
	plexAccountID        string
	plexEmail            string
	status               Status
	accessExpiresAt      *time.Time
	hadPreexistingAccess bool
	lastPaymentAt        *time.Time
	refreshError         string
	statusRefreshedAt    *time.Time

	createdAt time.Time
	updatedAt time.Time
}

// NewDonor creates a donor linked to a provider subscription.
func NewDonor(provider Provider, subscriptionID, email, name string) (*Donor, error) {
	if provider != ProviderPayPal && provider != ProviderStripe {
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if subscriptionID == "" {
		return nil, fmt.Errorf("subscription ID is required")
	}

	now := biztime.NowUTC()
	return &Donor{
		email:          utils.NormalizeEmail(email),
		name:           name,
		provider:       provider,
		subscriptionID: subscriptionID,
		status:         StatusPending,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// ReconstructDonor rebuilds a donor from persistence.
func ReconstructDonor(
	id uint,
	email, name string,
	provider Provider,
	subscriptionID, stripeCustomerID string,
	plexAccountID, plexEmail string,
	status Status,
	accessExpiresAt *time.Time,
	hadPreexistingAccess bool,
	lastPaymentAt *time.Time,
	refreshError string,
	statusRefreshedAt *time.Time,
	createdAt, updatedAt time.Time,
) (*Donor, error) {
	if id == 0 {
		return nil, fmt.Errorf("donor ID cannot be zero")
	}
	if !ValidStatuses[status] {
		return nil, fmt.Errorf("invalid donor status: %s", status)
	}

	return &Donor{
		id:                   id,
		email:                email,
		name:                 name,
		provider:             provider,
		subscriptionID:       subscriptionID,
		stripeCustomerID:     stripeCustomerID,
		plexAccountID:        plexAccountID,
		plexEmail:            plexEmail,
		status:               status,
		accessExpiresAt:      accessExpiresAt,
		hadPreexistingAccess: hadPreexistingAccess,
		lastPaymentAt:        lastPaymentAt,
		refreshError:         refreshError,
		statusRefreshedAt:    statusRefreshedAt,
		createdAt:            createdAt,
		updatedAt:            updatedAt,
	}, nil
}

func (d *Donor) ID() uint                      { return d.id }
func (d *Donor) Email() string                 { return d.email }
func (d *Donor) Name() string                  { return d.name }
func (d *Donor) Provider() Provider            { return d.provider }
func (d *Donor) SubscriptionID() string        { return d.subscriptionID }
func (d *Donor) StripeCustomerID() string      { return d.stripeCustomerID }
func (d *Donor) PlexAccountID() string         { return d.plexAccountID }
func (d *Donor) PlexEmail() string             { return d.plexEmail }
func (d *Donor) Status() Status                { return d.status }
func (d *Donor) AccessExpiresAt() *time.Time   { return d.accessExpiresAt }
func (d *Donor) HadPreexistingAccess() bool    { return d.hadPreexistingAccess }
func (d *Donor) LastPaymentAt() *time.Time     { return d.lastPaymentAt }
func (d *Donor) RefreshError() string          { return d.refreshError }
func (d *Donor) StatusRefreshedAt() *time.Time { return d.statusRefreshedAt }
func (d *Donor) CreatedAt() time.Time          { return d.createdAt }
func (d *Donor) UpdatedAt() time.Time          { return d.updatedAt }

// SetID writes the auto-generated ID back after insert.
func (d *Donor) SetID(id uint) { d.id = id }

// InviteEmail returns the address Plex invites should target: the Plex
// account email when known, the contact email otherwise.
func (d *Donor) InviteEmail() string {
	if d.plexEmail != "" {
		return d.plexEmail
	}
	return d.email
}

// UpdateContact sets contact email and name when the provider supplies them.
func (d *Donor) UpdateContact(email, name string) {
	if email != "" {
		d.email = utils.NormalizeEmail(email)
	}
	if name != "" {
		d.name = name
	}
	d.touch()
}

// SetPlexIdentity records the donor's Plex account snapshot.
func (d *Donor) SetPlexIdentity(accountID, email string) {
	d.plexAccountID = accountID
	d.plexEmail = utils.NormalizeEmail(email)
	d.touch()
}

// ClearPlexIdentity drops the recorded Plex identity (drift repair).
func (d *Donor) ClearPlexIdentity() {
	d.plexAccountID = ""
	d.plexEmail = ""
	d.touch()
}

// Activate moves the donor to active and clears the access expiration,
// preserving the invariant that active donors never carry one.
func (d *Donor) Activate(paidAt *time.Time) {
	d.status = StatusActive
	d.accessExpiresAt = nil
	if paidAt != nil {
		d.lastPaymentAt = paidAt
	}
	d.refreshError = ""
	d.touch()
}

// Terminate applies a provider termination: terminal status plus the grace
// window anchor. A nil expiresAt means access ends immediately.
func (d *Donor) Terminate(cause TerminationCause, expiresAt *time.Time) {
	d.status = StatusForCause(cause)
	d.accessExpiresAt = expiresAt
	d.touch()
}

// SetStatus persists a provider-reported status without side effects.
// Entering active clears the access expiration to uphold the invariant.
func (d *Donor) SetStatus(status Status) error {
	if !ValidStatuses[status] {
		return fmt.Errorf("invalid donor status: %s", status)
	}
	d.status = status
	if status == StatusActive {
		d.accessExpiresAt = nil
	}
	d.touch()
	return nil
}

// ExpireTrial marks an elapsed trial.
func (d *Donor) ExpireTrial() {
	d.status = StatusTrialExpired
	d.accessExpiresAt = nil
	d.touch()
}

// ClearAccessExpiration removes the grace-window anchor after revocation.
func (d *Donor) ClearAccessExpiration() {
	d.accessExpiresAt = nil
	d.touch()
}

// MarkPreexistingAccess flags a share that existed before this system granted
// one. Such shares are never revoked.
func (d *Donor) MarkPreexistingAccess() {
	d.hadPreexistingAccess = true
	d.touch()
}

// ClearPreexistingAccess converts an externally shared donor into one owned
// by this system. Happens on the first successful paid payment.
func (d *Donor) ClearPreexistingAccess() {
	d.hadPreexistingAccess = false
	d.touch()
}

// SetRefreshError records a provider refresh failure for later inspection.
func (d *Donor) SetRefreshError(msg string) {
	d.refreshError = msg
	d.touch()
}

// MarkStatusRefreshed records a successful provider status refresh.
func (d *Donor) MarkStatusRefreshed(at time.Time) {
	d.statusRefreshedAt = &at
	d.refreshError = ""
	d.touch()
}

// AccessExpired reports whether the grace window has elapsed.
func (d *Donor) AccessExpired(now time.Time) bool {
	return d.accessExpiresAt != nil && d.accessExpiresAt.Before(now)
}

func (d *Donor) touch() {
	d.updatedAt = biztime.NowUTC()
}
