// Package payment holds the append-only payment record. Rows are never
// mutated after insert; deduplication is keyed by (provider, provider
// payment id).
package payment

import (
	"fmt"
	"time"

	"plexward/internal/domain/donor"
	"plexward/internal/shared/biztime"
)

// Payment is one successful charge reported by a provider.
type Payment struct {
	id                uint
	donorID           uint
	provider          donor.Provider
	providerPaymentID string
	amount            float64
	currency          string
	paidAt            time.Time
	createdAt         time.Time
}

// NewPayment creates a payment record. Amounts are in major units; provider
// clients convert from minor units at the boundary.
func NewPayment(donorID uint, provider donor.Provider, providerPaymentID string, amount float64, currency string, paidAt time.Time) (*Payment, error) {
	if donorID == 0 {
		return nil, fmt.Errorf("donor ID is required")
	}
	if providerPaymentID == "" {
		return nil, fmt.Errorf("provider payment ID is required")
	}
	if amount < 0 {
		return nil, fmt.Errorf("amount cannot be negative")
	}
	return &Payment{
		donorID:           donorID,
		provider:          provider,
		providerPaymentID: providerPaymentID,
		amount:            amount,
		currency:          currency,
		paidAt:            paidAt.UTC(),
		createdAt:         biztime.NowUTC(),
	}, nil
}

// ReconstructPayment rebuilds a payment from persistence.
func ReconstructPayment(id, donorID uint, provider donor.Provider, providerPaymentID string, amount float64, currency string, paidAt, createdAt time.Time) *Payment {
	return &Payment{
		id:                id,
		donorID:           donorID,
		provider:          provider,
		providerPaymentID: providerPaymentID,
		amount:            amount,
		currency:          currency,
		paidAt:            paidAt,
		createdAt:         createdAt,
	}
}

func (p *Payment) ID() uint                  { return p.id }
func (p *Payment) DonorID() uint             { return p.donorID }
func (p *Payment) Provider() donor.Provider  { return p.provider }
func (p *Payment) ProviderPaymentID() string { return p.providerPaymentID }
func (p *Payment) Amount() float64           { return p.amount }
func (p *Payment) Currency() string          { return p.currency }
func (p *Payment) PaidAt() time.Time         { return p.paidAt }
func (p *Payment) CreatedAt() time.Time      { return p.createdAt }

// SetID writes the auto-generated ID back after insert.
func (p *Payment) SetID(id uint) { p.id = id }
