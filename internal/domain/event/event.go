// Package event holds the append-only audit log of typed business events.
// The log is the authoritative trail of what the reconciler did or declined
// to do for every acknowledged webhook.
package event

import (
	"context"
	"time"
)

// Kind names used across the reconciliation pipeline.
const (
	KindDonorCreated              = "donor.created"
	KindSubscriptionStarted       = "subscription.started"
	KindSubscriptionCancelled     = "subscription.cancelled"
	KindSubscriptionUpdated       = "subscription.updated"
	KindPaymentRecorded           = "payment.recorded"
	KindPaymentFailed             = "payment.failed"
	KindTransitionedToSub         = "transitioned_to_subscription"
	KindInviteCreated             = "invite.created"
	KindInviteReused              = "existing_invite_reused"
	KindInviteAutoSkipped         = "invite.auto.skipped"
	KindInviteEmailFailed         = "invite.email.failed"
	KindPlexAccessRevoked         = "plex.access.revoked"
	KindPlexAccessPreserved       = "plex.access.preserved"
	KindPlexAccessSynced          = "plex.access.synced"
	KindWebhookReceived           = "webhook.received"
	KindWebhookRejected           = "webhook.rejected"
	KindWebhookVerifyUnconfigured = "webhook.verify.unconfigured"
	KindSweepTick                 = "sweep.tick"
	KindAnnouncementSent          = "announcement.sent"
)

// Event is one audit row.
type Event struct {
	ID        uint
	Kind      string
	Payload   map[string]any
	CreatedAt time.Time
}

// Repository defines audit log persistence.
type Repository interface {
	// Log appends an event. Logging must never fail the surrounding
	// operation; implementations report errors for the caller to log.
	Log(ctx context.Context, kind string, payload map[string]any) error

	// ListRecent returns the newest events up to limit.
	ListRecent(ctx context.Context, limit int) ([]*Event, error)

	// ListByKind returns the newest events of one kind up to limit.
	ListByKind(ctx context.Context, kind string, limit int) ([]*Event, error)
}
