package handlers

import (
	"time"

	"plexward/internal/application/admin"
	"plexward/internal/domain/donor"
	"plexward/internal/domain/invite"
	"plexward/internal/domain/payment"
)

type donorResponse struct {
	ID                   uint   `json:"id"`
	Email                string `json:"email,omitempty"`
	Name                 string `json:"name,omitempty"`
	Provider             string `json:"provider"`
	SubscriptionID       string `json:"subscription_id"`
	StripeCustomerID     string `json:"stripe_customer_id,omitempty"`
	PlexAccountID        string `json:"plex_account_id,omitempty"`
	PlexEmail            string `json:"plex_email,omitempty"`
	Status               string `json:"status"`
	AccessExpiresAt      string `json:"access_expires_at,omitempty"`
	HadPreexistingAccess bool   `json:"had_preexisting_access"`
	LastPaymentAt        string `json:"last_payment_at,omitempty"`
	RefreshError         string `json:"refresh_error,omitempty"`
	StatusRefreshedAt    string `json:"status_refreshed_at,omitempty"`
	CreatedAt            string `json:"created_at"`
	UpdatedAt            string `json:"updated_at"`
}

type inviteResponse struct {
	ID              uint     `json:"id"`
	PlexInviteID    string   `json:"plex_invite_id,omitempty"`
	InviteURL       string   `json:"invite_url,omitempty"`
	InviteStatus    string   `json:"invite_status,omitempty"`
	SharedLibraries []string `json:"shared_libraries,omitempty"`
	RecipientEmail  string   `json:"recipient_email"`
	EmailSentAt     string   `json:"email_sent_at,omitempty"`
	CreatedAt       string   `json:"created_at"`
}

type paymentResponse struct {
	ID                uint    `json:"id"`
	Provider          string  `json:"provider"`
	ProviderPaymentID string  `json:"provider_payment_id"`
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	PaidAt            string  `json:"paid_at"`
}

type donorDetailResponse struct {
	Donor        donorResponse     `json:"donor"`
	ActiveInvite *inviteResponse   `json:"active_invite,omitempty"`
	Payments     []paymentResponse `json:"payments"`
}

func toDonorResponse(d *donor.Donor) donorResponse {
	resp := donorResponse{
		ID:                   d.ID(),
		Email:                d.Email(),
		Name:                 d.Name(),
		Provider:             string(d.Provider()),
		SubscriptionID:       d.SubscriptionID(),
		StripeCustomerID:     d.StripeCustomerID(),
		PlexAccountID:        d.PlexAccountID(),
		PlexEmail:            d.PlexEmail(),
		Status:               string(d.Status()),
		HadPreexistingAccess: d.HadPreexistingAccess(),
		RefreshError:         d.RefreshError(),
		CreatedAt:            d.CreatedAt().Format(time.RFC3339),
		UpdatedAt:            d.UpdatedAt().Format(time.RFC3339),
	}
	if d.AccessExpiresAt() != nil {
		resp.AccessExpiresAt = d.AccessExpiresAt().Format(time.RFC3339)
	}
	if d.LastPaymentAt() != nil {
		resp.LastPaymentAt = d.LastPaymentAt().Format(time.RFC3339)
	}
	if d.StatusRefreshedAt() != nil {
		resp.StatusRefreshedAt = d.StatusRefreshedAt().Format(time.RFC3339)
	}
	return resp
}

func toInviteResponse(inv *invite.Invite) *inviteResponse {
	resp := &inviteResponse{
		ID:              inv.ID(),
		PlexInviteID:    inv.PlexInviteID(),
		InviteURL:       inv.InviteURL(),
		InviteStatus:    inv.InviteStatus(),
		SharedLibraries: inv.SharedLibraries(),
		RecipientEmail:  inv.RecipientEmail(),
		CreatedAt:       inv.CreatedAt().Format(time.RFC3339),
	}
	if inv.EmailSentAt() != nil {
		resp.EmailSentAt = inv.EmailSentAt().Format(time.RFC3339)
	}
	return resp
}

func toPaymentResponse(p *payment.Payment) paymentResponse {
	return paymentResponse{
		ID:                p.ID(),
		Provider:          string(p.Provider()),
		ProviderPaymentID: p.ProviderPaymentID(),
		Amount:            p.Amount(),
		Currency:          p.Currency(),
		PaidAt:            p.PaidAt().Format(time.RFC3339),
	}
}

func toDonorDetailResponse(detail *admin.DonorDetail) donorDetailResponse {
	resp := donorDetailResponse{
		Donor:    toDonorResponse(detail.Donor),
		Payments: make([]paymentResponse, 0, len(detail.Payments)),
	}
	if detail.ActiveInvite != nil {
		resp.ActiveInvite = toInviteResponse(detail.ActiveInvite)
	}
	for _, p := range detail.Payments {
		resp.Payments = append(resp.Payments, toPaymentResponse(p))
	}
	return resp
}
