package payment

import (
	"context"

	"plexward/internal/domain/donor"
)

// Repository defines payment persistence.
type Repository interface {
	// Record inserts the payment, idempotently: a row with the same
	// (provider, provider payment id) already present returns that row with
	// created=false and writes nothing.
	Record(ctx context.Context, p *Payment) (existing *Payment, created bool, err error)

	// ListForDonor returns a donor's payments, newest first.
	ListForDonor(ctx context.Context, donorID uint) ([]*Payment, error)

	// GetByProviderPaymentID looks up a payment by its dedup key.
	GetByProviderPaymentID(ctx context.Context, provider donor.Provider, providerPaymentID string) (*Payment, error)
}
