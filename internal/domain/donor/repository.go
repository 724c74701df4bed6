package donor

import (
	"context"
	"time"
)

// UpsertFields carries the provider-supplied fields applied on upsert.
type UpsertFields struct {
	Email            string
	Name             string
	StripeCustomerID string
}

// Repository defines donor persistence. Implementations enforce the
// per-provider subscription ID uniqueness invariant.
type Repository interface {
	// UpsertBySubscription inserts or updates the donor keyed by
	// (provider, subscriptionID) and returns the post-image.
	UpsertBySubscription(ctx context.Context, provider Provider, subscriptionID string, fields UpsertFields) (*Donor, error)

	GetByID(ctx context.Context, id uint) (*Donor, error)
	GetBySubscriptionID(ctx context.Context, provider Provider, subscriptionID string) (*Donor, error)
	GetByEmail(ctx context.Context, email string) (*Donor, error)

	// Update persists the aggregate's current state.
	Update(ctx context.Context, d *Donor) error

	// List returns all donors ordered by creation time.
	List(ctx context.Context) ([]*Donor, error)

	// ListExpiredAccess returns donors in revocation-eligible statuses whose
	// accessExpiresAt lies before now.
	ListExpiredAccess(ctx context.Context, now time.Time) ([]*Donor, error)

	// ListForStatusRefresh returns PayPal donors in ambiguous states or whose
	// last refresh is older than staleBefore.
	ListForStatusRefresh(ctx context.Context, staleBefore time.Time) ([]*Donor, error)

	// ListWithPlexIdentity returns donors carrying a recorded Plex identity.
	ListWithPlexIdentity(ctx context.Context) ([]*Donor, error)

	// Delete removes the donor and cascades to invites, payments and share
	// links. Returns false when no such donor exists.
	Delete(ctx context.Context, id uint) (bool, error)
}
