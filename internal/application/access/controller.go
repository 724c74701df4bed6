// Package access translates "donor should or should not have Plex access"
// into idempotent operations against the Plex client.
package access

import (
	"context"
	stderrors "errors"

	"plexward/internal/domain/donor"
	"plexward/internal/infrastructure/plex"
	"plexward/internal/shared/errors"
	"plexward/internal/shared/logger"
)

// Presence classifies a donor against the server's current users.
type Presence string

const (
	PresenceShared  Presence = "shared"
	PresencePending Presence = "pending"
	PresenceAbsent  Presence = "absent"
)

// PlexGateway is the slice of the Plex client the controller needs.
type PlexGateway interface {
	Configured(ctx context.Context) bool
	Invite(ctx context.Context, invitedEmail string, sections []string) (*plex.InviteResult, error)
	CancelInvite(ctx context.Context, plexInviteID string) (bool, error)
	RevokeUser(ctx context.Context, target plex.RevokeTarget) (plex.RevokeOutcome, error)
	ListUsers(ctx context.Context) ([]plex.User, error)
	ListShares(ctx context.Context) ([]plex.Share, error)
}

// Controller exposes the idempotent share operations the reconciler and
// sweeper drive.
type Controller struct {
	plex   PlexGateway
	logger logger.Interface
}

func NewController(gateway PlexGateway, log logger.Interface) *Controller {
	return &Controller{
		plex:   gateway,
		logger: log,
	}
}

// Configured reports whether Plex calls can be attempted.
func (c *Controller) Configured(ctx context.Context) bool {
	return c.plex.Configured(ctx)
}

// InviteDonor shares the configured sections with the donor's Plex address.
// Plex failures are mapped onto the application error taxonomy.
func (c *Controller) InviteDonor(ctx context.Context, d *donor.Donor, sections []string) (*plex.InviteResult, error) {
	invitedEmail := d.InviteEmail()
	if invitedEmail == "" {
		return nil, errors.NewValidationError("donor has no invite address")
	}

	result, err := c.plex.Invite(ctx, invitedEmail, sections)
	if err != nil {
		return nil, mapPlexError(err)
	}
	c.logger.Infow("plex invite created",
		"donor_id", d.ID(),
		"invited_email", invitedEmail,
		"plex_invite_id", result.PlexInviteID,
		"has_invite_url", result.InviteURL != "",
	)
	return result, nil
}

// CancelInvite withdraws a pending Plex invite. Already-gone invites are not
// an error.
func (c *Controller) CancelInvite(ctx context.Context, plexInviteID string) (bool, error) {
	cancelled, err := c.plex.CancelInvite(ctx, plexInviteID)
	if err != nil {
		return false, mapPlexError(err)
	}
	return cancelled, nil
}

// RevokeDonor removes the donor's share, resolving the target by account id
// first and email second.
func (c *Controller) RevokeDonor(ctx context.Context, d *donor.Donor) (plex.RevokeOutcome, error) {
	target := plex.RevokeTarget{
		PlexAccountID: d.PlexAccountID(),
		Email:         d.InviteEmail(),
	}
	outcome, err := c.plex.RevokeUser(ctx, target)
	if err != nil {
		return "", mapPlexError(err)
	}
	c.logger.Infow("plex revoke completed",
		"donor_id", d.ID(),
		"outcome", string(outcome),
	)
	return outcome, nil
}

// ListUsers returns the server's current users.
func (c *Controller) ListUsers(ctx context.Context) ([]plex.User, error) {
	users, err := c.plex.ListUsers(ctx)
	if err != nil {
		return nil, mapPlexError(err)
	}
	return users, nil
}

// ListCurrentShares returns the current access grants.
func (c *Controller) ListCurrentShares(ctx context.Context) ([]plex.Share, error) {
	shares, err := c.plex.ListShares(ctx)
	if err != nil {
		return nil, mapPlexError(err)
	}
	return shares, nil
}

// DonorPresence looks the donor up in the current users.
func (c *Controller) DonorPresence(ctx context.Context, d *donor.Donor) (Presence, error) {
	users, err := c.ListUsers(ctx)
	if err != nil {
		return "", err
	}
	return DonorHasShare(d, users), nil
}

func mapPlexError(err error) error {
	switch {
	case stderrors.Is(err, plex.ErrNotConfigured):
		return errors.NewNotConfiguredError(err.Error())
	case stderrors.Is(err, plex.ErrNoSections):
		return errors.NewNotConfiguredError(err.Error())
	case stderrors.Is(err, plex.ErrNoSuchServer),
		stderrors.Is(err, plex.ErrAmbiguousServer),
		stderrors.Is(err, plex.ErrNotOwned):
		return errors.NewNotConfiguredError(err.Error())
	case stderrors.Is(err, plex.ErrRejected):
		return errors.NewRejectedError(err.Error())
	case stderrors.Is(err, plex.ErrNoIdentifier):
		return errors.NewValidationError(err.Error())
	default:
		return errors.NewTransportError(err.Error())
	}
}
