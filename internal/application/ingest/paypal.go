package ingest

import (
	"encoding/json"
	"strconv"
	"strings"

	"plexward/internal/domain/donor"
	"plexward/internal/shared/biztime"
	"plexward/internal/shared/errors"
)

// paypalEvent is the webhook envelope. The resource shape depends on the
// event type, so it stays raw until the type is known.
type paypalEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

type paypalSubscriptionResource struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Subscriber struct {
		EmailAddress string `json:"email_address"`
		Name         struct {
			GivenName string `json:"given_name"`
			Surname   string `json:"surname"`
		} `json:"name"`
	} `json:"subscriber"`
	BillingInfo struct {
		NextBillingTime     string `json:"next_billing_time"`
		FailedPaymentsCount int    `json:"failed_payments_count"`
		LastPayment         struct {
			Time string `json:"time"`
		} `json:"last_payment"`
	} `json:"billing_info"`
}

type paypalPaymentResource struct {
	ID                 string `json:"id"`
	BillingAgreementID string `json:"billing_agreement_id"`
	CustomID           string `json:"custom_id"`
	CreateTime         string `json:"create_time"`
	Amount             struct {
		// Sale shape
		Total    string `json:"total"`
		Currency string `json:"currency"`
		// Capture shape
		Value        string `json:"value"`
		CurrencyCode string `json:"currency_code"`
	} `json:"amount"`
	SupplementaryData struct {
		RelatedIDs struct {
			SubscriptionID string `json:"subscription_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

// TranslatePayPal maps a verified PayPal webhook body onto an internal
// event. Unhandled event types return (nil, nil) and are acknowledged
// without effects.
func TranslatePayPal(raw []byte) (SubscriptionEvent, error) {
	var envelope paypalEvent
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, errors.NewBadRequestError("failed to parse paypal event", err.Error())
	}
	if envelope.EventType == "" {
		return nil, errors.NewBadRequestError("paypal event has no event_type")
	}

	switch envelope.EventType {
	case "BILLING.SUBSCRIPTION.ACTIVATED", "BILLING.SUBSCRIPTION.RE-ACTIVATED":
		sub, err := parsePayPalSubscription(envelope.Resource)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSpace(sub.Subscriber.Name.GivenName + " " + sub.Subscriber.Name.Surname)
		return SubscriptionActivated{
			base:          base{Provider: donor.ProviderPayPal, SubID: sub.ID},
			Subscriber:    Subscriber{Email: sub.Subscriber.EmailAddress, Name: name},
			LastPaymentAt: biztime.ParseISO(sub.BillingInfo.LastPayment.Time),
			NextBillingAt: biztime.ParseISO(sub.BillingInfo.NextBillingTime),
		}, nil

	case "BILLING.SUBSCRIPTION.UPDATED":
		sub, err := parsePayPalSubscription(envelope.Resource)
		if err != nil {
			return nil, err
		}
		return SubscriptionUpdated{
			base:          base{Provider: donor.ProviderPayPal, SubID: sub.ID},
			Status:        MapPayPalStatus(sub.Status),
			NextBillingAt: biztime.ParseISO(sub.BillingInfo.NextBillingTime),
		}, nil

	case "BILLING.SUBSCRIPTION.CANCELLED", "BILLING.SUBSCRIPTION.SUSPENDED", "BILLING.SUBSCRIPTION.EXPIRED":
		sub, err := parsePayPalSubscription(envelope.Resource)
		if err != nil {
			return nil, err
		}
		return SubscriptionTerminated{
			base:        base{Provider: donor.ProviderPayPal, SubID: sub.ID},
			Cause:       paypalTerminationCause(envelope.EventType),
			EffectiveAt: biztime.ParseISO(sub.BillingInfo.NextBillingTime),
		}, nil

	case "BILLING.SUBSCRIPTION.PAYMENT.FAILED":
		sub, err := parsePayPalSubscription(envelope.Resource)
		if err != nil {
			return nil, err
		}
		attempts := sub.BillingInfo.FailedPaymentsCount
		if attempts == 0 {
			attempts = 1
		}
		return PaymentFailed{
			base:         base{Provider: donor.ProviderPayPal, SubID: sub.ID},
			AttemptCount: attempts,
		}, nil

	case "PAYMENT.SALE.COMPLETED", "PAYMENT.CAPTURE.COMPLETED":
		return translatePayPalPayment(envelope.Resource)

	default:
		return nil, nil
	}
}

func parsePayPalSubscription(raw json.RawMessage) (*paypalSubscriptionResource, error) {
	var sub paypalSubscriptionResource
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, errors.NewBadRequestError("failed to parse paypal subscription resource", err.Error())
	}
	if sub.ID == "" {
		return nil, errors.NewBadRequestError("paypal subscription resource has no id")
	}
	return &sub, nil
}

func translatePayPalPayment(raw json.RawMessage) (SubscriptionEvent, error) {
	var payment paypalPaymentResource
	if err := json.Unmarshal(raw, &payment); err != nil {
		return nil, errors.NewBadRequestError("failed to parse paypal payment resource", err.Error())
	}

	subID := payment.BillingAgreementID
	if subID == "" {
		subID = payment.SupplementaryData.RelatedIDs.SubscriptionID
	}
	if subID == "" {
		subID = payment.CustomID
	}
	if subID == "" {
		return nil, errors.NewBadRequestError("paypal payment carries no subscription reference")
	}

	amountStr := payment.Amount.Total
	currency := payment.Amount.Currency
	if amountStr == "" {
		amountStr = payment.Amount.Value
		currency = payment.Amount.CurrencyCode
	}
	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		return nil, errors.NewBadRequestError("failed to parse paypal payment amount", amountStr)
	}

	paidAt := biztime.NowUTC()
	if parsed := biztime.ParseISO(payment.CreateTime); parsed != nil {
		paidAt = *parsed
	}

	return PaymentSucceeded{
		base:      base{Provider: donor.ProviderPayPal, SubID: subID},
		PaymentID: payment.ID,
		Amount:    amount,
		Currency:  currency,
		PaidAt:    paidAt,
	}, nil
}

// MapPayPalStatus maps the provider's subscription status vocabulary onto
// donor statuses.
func MapPayPalStatus(status string) donor.Status {
	switch strings.ToUpper(status) {
	case "ACTIVE":
		return donor.StatusActive
	case "APPROVAL_PENDING", "APPROVED":
		return donor.StatusPending
	case "SUSPENDED":
		return donor.StatusSuspended
	case "CANCELLED":
		return donor.StatusCancelled
	case "EXPIRED":
		return donor.StatusExpired
	default:
		return donor.StatusPending
	}
}

func paypalTerminationCause(eventType string) donor.TerminationCause {
	switch eventType {
	case "BILLING.SUBSCRIPTION.SUSPENDED":
		return donor.CauseSuspended
	case "BILLING.SUBSCRIPTION.EXPIRED":
		return donor.CauseExpired
	default:
		return donor.CauseCancelled
	}
}
