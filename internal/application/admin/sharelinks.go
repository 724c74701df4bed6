package admin

import (
	"context"
	stderrors "errors"
	"strings"

	"plexward/internal/domain/sharelink"
	"plexward/internal/shared/biztime"
	"plexward/internal/shared/errors"
	"plexward/internal/shared/logger"
)

// PayPalCheckout starts a PayPal subscription approval flow.
type PayPalCheckout interface {
	CreateSubscription(ctx context.Context, subscriberEmail, returnURL, cancelURL string) (string, error)
}

// StripeCheckout starts a Stripe hosted checkout.
type StripeCheckout interface {
	CreateCheckoutSession(ctx context.Context, customerEmail, successURL, cancelURL string) (string, error)
}

// ShareResolver turns a share-link token into a provider checkout URL.
type ShareResolver struct {
	links         sharelink.Repository
	paypal        PayPalCheckout
	stripe        StripeCheckout
	publicBaseURL string
	logger        logger.Interface
}

func NewShareResolver(
	links sharelink.Repository,
	paypalCheckout PayPalCheckout,
	stripeCheckout StripeCheckout,
	publicBaseURL string,
	log logger.Interface,
) *ShareResolver {
	return &ShareResolver{
		links:         links,
		paypal:        paypalCheckout,
		stripe:        stripeCheckout,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        log,
	}
}

// Resolve validates the token and returns the checkout URL for the chosen
// provider. The link is stamped redeemed on first use but stays resolvable
// until it expires, so an abandoned checkout can be restarted.
func (r *ShareResolver) Resolve(ctx context.Context, token, provider string) (string, error) {
	link, err := r.links.GetByToken(ctx, token)
	if err != nil {
		if stderrors.Is(err, sharelink.ErrNotFound) {
			return "", errors.NewNotFoundError("share link not found")
		}
		return "", err
	}

	now := biztime.NowUTC()
	if link.Expired(now) {
		return "", errors.NewValidationError("share link has expired")
	}

	returnURL := r.publicBaseURL + "/dashboard"
	cancelURL := r.publicBaseURL + "/"

	var checkoutURL string
	switch provider {
	case "paypal":
		if r.paypal == nil {
			return "", errors.NewNotConfiguredError("paypal is not configured")
		}
		checkoutURL, err = r.paypal.CreateSubscription(ctx, link.ProspectEmail(), returnURL, cancelURL)
	case "stripe":
		if r.stripe == nil {
			return "", errors.NewNotConfiguredError("stripe is not configured")
		}
		checkoutURL, err = r.stripe.CreateCheckoutSession(ctx, link.ProspectEmail(), returnURL, cancelURL)
	default:
		return "", errors.NewValidationError("unknown provider: " + provider)
	}
	if err != nil {
		return "", err
	}

	if link.RedeemedAt() == nil {
		link.MarkRedeemed(now)
		if updateErr := r.links.Update(ctx, link); updateErr != nil {
			r.logger.Errorw("failed to stamp share link redemption", "token", token, "error", updateErr)
		}
	}

	return checkoutURL, nil
}
