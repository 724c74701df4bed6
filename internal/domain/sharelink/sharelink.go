// Package sharelink holds the onboarding artifacts the admin flow hands to
// prospective donors. The reconciler never touches these; it only consumes
// the donor a redeemed link produces.
package sharelink

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"plexward/internal/shared/biztime"
	"plexward/internal/shared/utils"
)

// ErrNotFound is returned when no share link matches the lookup.
var ErrNotFound = fmt.Errorf("share link not found")

// ShareLink is a tokenized onboarding URL, optionally pre-bound to a donor
// or holding a prospect's contact address.
type ShareLink struct {
	id            uint
	token         string
	donorID       *uint
	prospectEmail string
	note          string
	expiresAt     *time.Time
	redeemedAt    *time.Time
	createdAt     time.Time
}

// NewShareLink creates a link with a fresh random token.
func NewShareLink(donorID *uint, prospectEmail, note string, expiresAt *time.Time) (*ShareLink, error) {
	if donorID != nil && *donorID == 0 {
		return nil, fmt.Errorf("donor ID cannot be zero")
	}
	return &ShareLink{
		token:         uuid.New().String(),
		donorID:       donorID,
		prospectEmail: utils.NormalizeEmail(prospectEmail),
		note:          note,
		expiresAt:     expiresAt,
		createdAt:     biztime.NowUTC(),
	}, nil
}

// ReconstructShareLink rebuilds a share link from persistence.
func ReconstructShareLink(id uint, token string, donorID *uint, prospectEmail, note string, expiresAt, redeemedAt *time.Time, createdAt time.Time) *ShareLink {
	return &ShareLink{
		id:            id,
		token:         token,
		donorID:       donorID,
		prospectEmail: prospectEmail,
		note:          note,
		expiresAt:     expiresAt,
		redeemedAt:    redeemedAt,
		createdAt:     createdAt,
	}
}

func (s *ShareLink) ID() uint               { return s.id }
func (s *ShareLink) Token() string          { return s.token }
func (s *ShareLink) DonorID() *uint         { return s.donorID }
func (s *ShareLink) ProspectEmail() string  { return s.prospectEmail }
func (s *ShareLink) Note() string           { return s.note }
func (s *ShareLink) ExpiresAt() *time.Time  { return s.expiresAt }
func (s *ShareLink) RedeemedAt() *time.Time { return s.redeemedAt }
func (s *ShareLink) CreatedAt() time.Time   { return s.createdAt }

// SetID writes the auto-generated ID back after insert.
func (s *ShareLink) SetID(id uint) { s.id = id }

// Expired reports whether the link can no longer be redeemed.
func (s *ShareLink) Expired(now time.Time) bool {
	return s.expiresAt != nil && s.expiresAt.Before(now)
}

// MarkRedeemed stamps first use.
func (s *ShareLink) MarkRedeemed(at time.Time) {
	s.redeemedAt = &at
}

// Repository defines share link persistence.
type Repository interface {
	Create(ctx context.Context, link *ShareLink) error
	GetByToken(ctx context.Context, token string) (*ShareLink, error)
	Update(ctx context.Context, link *ShareLink) error
	List(ctx context.Context) ([]*ShareLink, error)
	Delete(ctx context.Context, id uint) error
}
