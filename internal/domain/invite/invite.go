package invite

import (
	"fmt"
	"time"

	"plexward/internal/shared/biztime"
	"plexward/internal/shared/utils"
)

// Invite represents a Plex share or pending invitation tied to a donor.
// A donor has at most one active (non-revoked) invite.
type Invite struct {
	id              uint
	donorID         uint
	plexInviteID    string
	inviteURL       string
	inviteStatus    string
	invitedAt       *time.Time
	plexInvitedAt   *time.Time
	sharedLibraries []string
	recipientEmail  string
	plexAccountID   string
	plexEmail       string
	note            string
	emailSentAt     *time.Time
	revokedAt       *time.Time
	plexRevokedAt   *time.Time
	createdAt       time.Time
}

// NewInvite creates an active invite for a donor.
func NewInvite(donorID uint, recipientEmail string) (*Invite, error) {
	if donorID == 0 {
		return nil, fmt.Errorf("donor ID is required")
	}
	if recipientEmail == "" {
		return nil, fmt.Errorf("recipient email is required")
	}

	now := biztime.NowUTC()
	return &Invite{
		donorID:        donorID,
		recipientEmail: utils.NormalizeEmail(recipientEmail),
		invitedAt:      &now,
		createdAt:      now,
	}, nil
}

// ReconstructInvite rebuilds an invite from persistence.
func ReconstructInvite(
	id, donorID uint,
	plexInviteID, inviteURL, inviteStatus string,
	invitedAt, plexInvitedAt *time.Time,
	sharedLibraries []string,
	recipientEmail, plexAccountID, plexEmail, note string,
	emailSentAt, revokedAt, plexRevokedAt *time.Time,
	createdAt time.Time,
) (*Invite, error) {
	if id == 0 {
		return nil, fmt.Errorf("invite ID cannot be zero")
	}
	return &Invite{
		id:              id,
		donorID:         donorID,
		plexInviteID:    plexInviteID,
		inviteURL:       inviteURL,
		inviteStatus:    inviteStatus,
		invitedAt:       invitedAt,
		plexInvitedAt:   plexInvitedAt,
		sharedLibraries: sharedLibraries,
		recipientEmail:  recipientEmail,
		plexAccountID:   plexAccountID,
		plexEmail:       plexEmail,
		note:            note,
		emailSentAt:     emailSentAt,
		revokedAt:       revokedAt,
		plexRevokedAt:   plexRevokedAt,
		createdAt:       createdAt,
	}, nil
}

func (i *Invite) ID() uint                  { return i.id }
func (i *Invite) DonorID() uint             { return i.donorID }
func (i *Invite) PlexInviteID() string      { return i.plexInviteID }
func (i *Invite) InviteURL() string         { return i.inviteURL }
func (i *Invite) InviteStatus() string      { return i.inviteStatus }
func (i *Invite) InvitedAt() *time.Time     { return i.invitedAt }
func (i *Invite) PlexInvitedAt() *time.Time { return i.plexInvitedAt }
func (i *Invite) SharedLibraries() []string { return i.sharedLibraries }
func (i *Invite) RecipientEmail() string    { return i.recipientEmail }
func (i *Invite) PlexAccountID() string     { return i.plexAccountID }
func (i *Invite) PlexEmail() string         { return i.plexEmail }
func (i *Invite) Note() string              { return i.note }
func (i *Invite) EmailSentAt() *time.Time   { return i.emailSentAt }
func (i *Invite) RevokedAt() *time.Time     { return i.revokedAt }
func (i *Invite) PlexRevokedAt() *time.Time { return i.plexRevokedAt }
func (i *Invite) CreatedAt() time.Time      { return i.createdAt }

// SetID writes the auto-generated ID back after insert.
func (i *Invite) SetID(id uint) { i.id = id }

// AttachPlexResult records what Plex returned for the share request.
func (i *Invite) AttachPlexResult(plexInviteID, inviteURL, status string, sections []string, invitedAt time.Time) {
	i.plexInviteID = plexInviteID
	i.inviteURL = inviteURL
	i.inviteStatus = status
	i.sharedLibraries = sections
	i.plexInvitedAt = &invitedAt
}

// SetPlexIdentity snapshots the Plex identity the share resolved to.
func (i *Invite) SetPlexIdentity(accountID, email string) {
	i.plexAccountID = accountID
	i.plexEmail = utils.NormalizeEmail(email)
}

// SetNote attaches an operator note.
func (i *Invite) SetNote(note string) { i.note = note }

// MarkEmailSent records delivery of the invite email.
func (i *Invite) MarkEmailSent(at time.Time) {
	i.emailSentAt = &at
}

// Revoke marks the invite inactive. plexRevoked indicates the Plex side was
// also removed.
func (i *Invite) Revoke(at time.Time, plexRevoked bool) {
	i.revokedAt = &at
	if plexRevoked {
		i.plexRevokedAt = &at
	}
}

// Usable reports whether the invite can still admit the donor: not revoked
// and carrying either an invite URL or a Plex invite id.
func (i *Invite) Usable() bool {
	return i.revokedAt == nil && (i.inviteURL != "" || i.plexInviteID != "")
}

// Stale reports whether the invite has outlived the staleness threshold.
// A zero threshold disables staleness.
func (i *Invite) Stale(threshold time.Duration, now time.Time) bool {
	if threshold <= 0 {
		return false
	}
	latest := i.createdAt
	if i.invitedAt != nil && i.invitedAt.After(latest) {
		latest = *i.invitedAt
	}
	if i.plexInvitedAt != nil && i.plexInvitedAt.After(latest) {
		latest = *i.plexInvitedAt
	}
	return now.Sub(latest) > threshold
}
