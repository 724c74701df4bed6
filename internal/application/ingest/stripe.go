package ingest

import (
	"encoding/json"
	"strings"
	"time"

	"plexward/internal/domain/donor"
	"plexward/internal/infrastructure/stripe"
	"plexward/internal/shared/errors"
)

type stripeCheckoutSession struct {
	ID              string `json:"id"`
	Subscription    string `json:"subscription"`
	Customer        string `json:"customer"`
	CustomerEmail   string `json:"customer_email"`
	CustomerDetails struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer_details"`
}

type stripeSubscription struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	Customer          string `json:"customer"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
}

type stripeInvoice struct {
	ID            string `json:"id"`
	Subscription  string `json:"subscription"`
	Customer      string `json:"customer"`
	CustomerEmail string `json:"customer_email"`
	AmountPaid    int64  `json:"amount_paid"`
	Currency      string `json:"currency"`
	Created       int64  `json:"created"`
	AttemptCount  int    `json:"attempt_count"`
}

// TranslateStripe maps a verified Stripe event onto an internal event.
// Unhandled event types return (nil, nil) and are acknowledged without
// effects.
func TranslateStripe(event *stripe.Event) (SubscriptionEvent, error) {
	switch event.Type {
	case "checkout.session.completed":
		var session stripeCheckoutSession
		if err := json.Unmarshal(event.Data.Object, &session); err != nil {
			return nil, errors.NewBadRequestError("failed to parse checkout session", err.Error())
		}
		if session.Subscription == "" {
			// One-time checkouts carry no subscription and are out of scope.
			return nil, nil
		}
		email := session.CustomerDetails.Email
		if email == "" {
			email = session.CustomerEmail
		}
		return SubscriptionActivated{
			base:       base{Provider: donor.ProviderStripe, SubID: session.Subscription},
			Subscriber: Subscriber{Email: email, Name: session.CustomerDetails.Name},
		}, nil

	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripeSubscription
		if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
			return nil, errors.NewBadRequestError("failed to parse subscription", err.Error())
		}
		if sub.ID == "" {
			return nil, errors.NewBadRequestError("stripe subscription has no id")
		}
		return SubscriptionUpdated{
			base:          base{Provider: donor.ProviderStripe, SubID: sub.ID},
			Status:        MapStripeStatus(sub.Status),
			NextBillingAt: unixTime(sub.CurrentPeriodEnd),
		}, nil

	case "customer.subscription.deleted":
		var sub stripeSubscription
		if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
			return nil, errors.NewBadRequestError("failed to parse subscription", err.Error())
		}
		if sub.ID == "" {
			return nil, errors.NewBadRequestError("stripe subscription has no id")
		}
		return SubscriptionTerminated{
			base:        base{Provider: donor.ProviderStripe, SubID: sub.ID},
			Cause:       donor.CauseCancelled,
			EffectiveAt: unixTime(sub.CurrentPeriodEnd),
		}, nil

	case "invoice.payment_succeeded":
		var invoice stripeInvoice
		if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
			return nil, errors.NewBadRequestError("failed to parse invoice", err.Error())
		}
		if invoice.Subscription == "" {
			return nil, nil
		}
		paidAt := time.Unix(invoice.Created, 0).UTC()
		return PaymentSucceeded{
			base:       base{Provider: donor.ProviderStripe, SubID: invoice.Subscription},
			PaymentID:  invoice.ID,
			Amount:     stripe.AmountToMajorUnits(invoice.AmountPaid),
			Currency:   strings.ToUpper(invoice.Currency),
			PaidAt:     paidAt,
			PayerEmail: invoice.CustomerEmail,
		}, nil

	case "invoice.payment_failed":
		var invoice stripeInvoice
		if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
			return nil, errors.NewBadRequestError("failed to parse invoice", err.Error())
		}
		if invoice.Subscription == "" {
			return nil, nil
		}
		attempts := invoice.AttemptCount
		if attempts == 0 {
			attempts = 1
		}
		return PaymentFailed{
			base:         base{Provider: donor.ProviderStripe, SubID: invoice.Subscription},
			AttemptCount: attempts,
		}, nil

	default:
		return nil, nil
	}
}

// MapStripeStatus maps Stripe's subscription status vocabulary onto donor
// statuses.
func MapStripeStatus(status string) donor.Status {
	switch status {
	case "active":
		return donor.StatusActive
	case "trialing":
		return donor.StatusTrial
	case "past_due", "unpaid":
		return donor.StatusPastDue
	case "canceled":
		return donor.StatusCancelled
	case "incomplete", "incomplete_expired":
		return donor.StatusPending
	case "paused":
		return donor.StatusSuspended
	default:
		return donor.StatusPending
	}
}

func unixTime(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
