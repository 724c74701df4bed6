// Package ingest translates verified provider webhook payloads into the
// uniform internal event kinds the reconciler consumes.
package ingest

import (
	"time"

	"plexward/internal/domain/donor"
)

// SubscriptionEvent is one normalized provider event.
type SubscriptionEvent interface {
	ProviderName() donor.Provider
	SubscriptionID() string
	Kind() string
}

// base carries the fields every event shares.
type base struct {
	Provider donor.Provider
	SubID    string
}

func (b base) ProviderName() donor.Provider { return b.Provider }
func (b base) SubscriptionID() string       { return b.SubID }

// Subscriber is the payer identity attached to an activation.
type Subscriber struct {
	Email string
	Name  string
}

// SubscriptionActivated means the provider considers the subscription live.
type SubscriptionActivated struct {
	base
	Subscriber    Subscriber
	LastPaymentAt *time.Time
	NextBillingAt *time.Time
}

func (SubscriptionActivated) Kind() string { return "subscription.activated" }

// SubscriptionUpdated carries a bare status change.
type SubscriptionUpdated struct {
	base
	Status        donor.Status
	NextBillingAt *time.Time
}

func (SubscriptionUpdated) Kind() string { return "subscription.updated" }

// NewSubscriptionUpdated builds a status-change event outside the webhook
// path. The admin refresh flow feeds provider lookups through the same
// reconciler entry point as live webhooks.
func NewSubscriptionUpdated(provider donor.Provider, subscriptionID string, status donor.Status, nextBillingAt *time.Time) SubscriptionUpdated {
	return SubscriptionUpdated{
		base:          base{Provider: provider, SubID: subscriptionID},
		Status:        status,
		NextBillingAt: nextBillingAt,
	}
}

// SubscriptionTerminated means the subscription ended; EffectiveAt is the
// paid-through instant when the provider reported one.
type SubscriptionTerminated struct {
	base
	Cause       donor.TerminationCause
	EffectiveAt *time.Time
}

func (SubscriptionTerminated) Kind() string { return "subscription.terminated" }

// PaymentSucceeded records a completed charge in major currency units.
type PaymentSucceeded struct {
	base
	PaymentID  string
	Amount     float64
	Currency   string
	PaidAt     time.Time
	PayerEmail string
}

func (PaymentSucceeded) Kind() string { return "payment.succeeded" }

// PaymentFailed records a failed charge attempt.
type PaymentFailed struct {
	base
	AttemptCount int
}

func (PaymentFailed) Kind() string { return "payment.failed" }
