package invite

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no invite matches the lookup.
var ErrNotFound = errors.New("invite not found")

// ErrActiveInviteExists is returned when the partial-unique active-invite
// constraint rejects a concurrent create.
var ErrActiveInviteExists = errors.New("donor already has an active invite")

// Repository defines invite persistence.
type Repository interface {
	// Create inserts the invite, atomically revoking any prior active invite
	// for the same donor. The partial unique index on (donor_id) WHERE
	// revoked_at IS NULL backs the at-most-one-active invariant; a loser of a
	// concurrent race receives ErrActiveInviteExists.
	Create(ctx context.Context, inv *Invite) error

	GetByID(ctx context.Context, id uint) (*Invite, error)

	// LatestActiveForDonor returns the donor's active invite or ErrNotFound.
	LatestActiveForDonor(ctx context.Context, donorID uint) (*Invite, error)

	// Update persists the invite's current state.
	Update(ctx context.Context, inv *Invite) error

	// MarkEmailSent stamps email_sent_at and returns the post-image.
	MarkEmailSent(ctx context.Context, id uint) (*Invite, error)

	// Revoke stamps revoked_at (and optionally plex_revoked_at).
	Revoke(ctx context.Context, id uint, plexRevoked bool) error

	// ListForDonor returns all invites for a donor, newest first.
	ListForDonor(ctx context.Context, donorID uint) ([]*Invite, error)
}
