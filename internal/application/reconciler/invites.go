package reconciler

import (
	"context"
	stderrors "errors"
	"fmt"

	"plexward/internal/application/access"
	"plexward/internal/application/notifier"
	"plexward/internal/domain/donor"
	"plexward/internal/domain/event"
	"plexward/internal/domain/invite"
	"plexward/internal/infrastructure/plex"
	"plexward/internal/shared/biztime"
)

// ensureInviteAbsorbed runs ensureInvite and converts failures into donor
// state plus an audit row instead of failing the event.
func (r *Reconciler) ensureInviteAbsorbed(ctx context.Context, d *donor.Donor) {
	if err := r.ensureInvite(ctx, d); err != nil {
		r.logger.Errorw("invite provisioning failed", "donor_id", d.ID(), "error", err)
		d.SetRefreshError(err.Error())
		if updateErr := r.donors.Update(ctx, d); updateErr != nil {
			r.logger.Errorw("failed to record invite failure", "donor_id", d.ID(), "error", updateErr)
		}
		payload := r.donorPayload(d)
		payload["reason"] = "error"
		payload["error"] = err.Error()
		r.audit(ctx, event.KindInviteAutoSkipped, payload)
	}
}

// ensureInvite makes sure an active donor holds a usable invite and has been
// told about it. Safe to call repeatedly.
func (r *Reconciler) ensureInvite(ctx context.Context, d *donor.Donor) error {
	if d.Status() != donor.StatusActive {
		payload := r.donorPayload(d)
		payload["reason"] = "not_active"
		r.audit(ctx, event.KindInviteAutoSkipped, payload)
		return nil
	}

	if d.InviteEmail() == "" {
		payload := r.donorPayload(d)
		payload["reason"] = "no_invite_email"
		r.audit(ctx, event.KindInviteAutoSkipped, payload)
		return nil
	}

	if !r.access.Configured(ctx) {
		payload := r.donorPayload(d)
		payload["reason"] = "plex_not_configured"
		r.audit(ctx, event.KindInviteAutoSkipped, payload)
		return nil
	}

	users, err := r.access.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list plex users: %w", err)
	}
	if user := access.FindDonorUser(d, users); user != nil {
		return r.handleExistingPresence(ctx, d, user)
	}

	latest, err := r.invites.LatestActiveForDonor(ctx, d.ID())
	switch {
	case err == nil:
		return r.refreshExistingInvite(ctx, d, latest)
	case stderrors.Is(err, invite.ErrNotFound):
		return r.createFreshInvite(ctx, d)
	default:
		return fmt.Errorf("failed to load latest invite: %w", err)
	}
}

// handleExistingPresence skips invite creation for donors already on the
// server, snapshotting their identity and flagging pre-existing access when
// this system never granted it.
func (r *Reconciler) handleExistingPresence(ctx context.Context, d *donor.Donor, user *plex.User) error {
	payload := r.donorPayload(d)
	if user.IsPending() {
		payload["reason"] = "invite_pending"
		r.audit(ctx, event.KindInviteAutoSkipped, payload)
		return nil
	}

	changed := false
	if accountID, plexEmail := access.IdentitySnapshot(user); accountID != "" || plexEmail != "" {
		if accountID != d.PlexAccountID() || plexEmail != d.PlexEmail() {
			d.SetPlexIdentity(accountID, plexEmail)
			changed = true
		}
	}

	// No invite on file and never paid before means the owner shared with
	// them outside this system.
	_, err := r.invites.LatestActiveForDonor(ctx, d.ID())
	if stderrors.Is(err, invite.ErrNotFound) && d.LastPaymentAt() == nil && !d.HadPreexistingAccess() {
		d.MarkPreexistingAccess()
		changed = true
	} else if err != nil && !stderrors.Is(err, invite.ErrNotFound) {
		return fmt.Errorf("failed to load latest invite: %w", err)
	}

	if changed {
		if err := r.donors.Update(ctx, d); err != nil {
			return fmt.Errorf("failed to persist pre-existing access: %w", err)
		}
	}

	payload["reason"] = "already_on_server"
	payload["had_preexisting_access"] = d.HadPreexistingAccess()
	r.audit(ctx, event.KindInviteAutoSkipped, payload)
	return nil
}

// refreshExistingInvite decides between reusing, re-mailing, and recreating
// the invite on file.
func (r *Reconciler) refreshExistingInvite(ctx context.Context, d *donor.Donor, latest *invite.Invite) error {
	now := biztime.NowUTC()
	stale := latest.Stale(r.cfg.InviteStaleThreshold, now)

	if latest.Usable() && !stale {
		if latest.EmailSentAt() != nil {
			payload := r.donorPayload(d)
			payload["invite_id"] = latest.ID()
			r.audit(ctx, event.KindInviteReused, payload)
			return nil
		}
		// Usable invite whose email never went out.
		if err := r.mailer.SendInvite(ctx, d, latest.InviteURL()); err != nil {
			return r.recordInviteEmailFailure(ctx, d, latest, false, err)
		}
		if _, err := r.invites.MarkEmailSent(ctx, latest.ID()); err != nil {
			return fmt.Errorf("failed to mark invite email sent: %w", err)
		}
		payload := r.donorPayload(d)
		payload["invite_id"] = latest.ID()
		payload["email_sent"] = true
		r.audit(ctx, event.KindInviteReused, payload)
		return nil
	}

	// Stale, or missing both the URL and the Plex id.
	return r.createFreshInvite(ctx, d)
}

// createFreshInvite calls Plex, stores the invite row (revoking any prior
// one), and mails the donor. A lost creation race reuses the winner's row.
func (r *Reconciler) createFreshInvite(ctx context.Context, d *donor.Donor) error {
	result, err := r.access.InviteDonor(ctx, d, nil)
	if err != nil {
		return fmt.Errorf("failed to create plex invite: %w", err)
	}

	inv, err := invite.NewInvite(d.ID(), d.InviteEmail())
	if err != nil {
		return err
	}
	inv.AttachPlexResult(result.PlexInviteID, result.InviteURL, result.Status, result.SharedLibraries, result.InvitedAt)
	if d.PlexAccountID() != "" || d.PlexEmail() != "" {
		inv.SetPlexIdentity(d.PlexAccountID(), d.PlexEmail())
	}

	if err := r.invites.Create(ctx, inv); err != nil {
		if stderrors.Is(err, invite.ErrActiveInviteExists) {
			// A parallel delivery won the race; their row stands.
			payload := r.donorPayload(d)
			payload["reason"] = "concurrent_create"
			r.audit(ctx, event.KindInviteReused, payload)
			if result.PlexInviteID != "" {
				if _, cancelErr := r.access.CancelInvite(ctx, result.PlexInviteID); cancelErr != nil {
					r.logger.Warnw("failed to cancel redundant plex invite", "error", cancelErr)
				}
			}
			return nil
		}
		return fmt.Errorf("failed to store invite: %w", err)
	}

	payload := r.donorPayload(d)
	payload["invite_id"] = inv.ID()
	payload["plex_invite_id"] = result.PlexInviteID
	payload["has_invite_url"] = result.InviteURL != ""
	for key, value := range notifier.RelayFlags(d) {
		payload[key] = value
	}
	r.audit(ctx, event.KindInviteCreated, payload)

	if err := r.mailer.SendInvite(ctx, d, result.InviteURL); err != nil {
		return r.recordInviteEmailFailure(ctx, d, inv, result.InviteURL != "", err)
	}
	if _, err := r.invites.MarkEmailSent(ctx, inv.ID()); err != nil {
		return fmt.Errorf("failed to mark invite email sent: %w", err)
	}
	return nil
}

// recordInviteEmailFailure logs the failure and withdraws a freshly created
// Plex invite nobody will ever learn about.
func (r *Reconciler) recordInviteEmailFailure(ctx context.Context, d *donor.Donor, inv *invite.Invite, freshWithURL bool, sendErr error) error {
	payload := r.donorPayload(d)
	payload["invite_id"] = inv.ID()
	payload["error"] = sendErr.Error()
	for key, value := range notifier.RelayFlags(d) {
		payload[key] = value
	}
	r.audit(ctx, event.KindInviteEmailFailed, payload)

	if freshWithURL && inv.PlexInviteID() != "" {
		if _, err := r.access.CancelInvite(ctx, inv.PlexInviteID()); err != nil {
			r.logger.Warnw("failed to cancel plex invite after email failure", "error", err)
		}
		if err := r.invites.Revoke(ctx, inv.ID(), true); err != nil {
			r.logger.Errorw("failed to revoke invite after email failure", "error", err)
		}
	}
	return fmt.Errorf("invite email failed: %w", sendErr)
}

// ensureRevokedAbsorbed runs ensureRevoked and converts failures into donor
// state plus an audit row instead of failing the event.
func (r *Reconciler) ensureRevokedAbsorbed(ctx context.Context, d *donor.Donor) {
	if err := r.EnsureRevoked(ctx, d); err != nil {
		r.logger.Errorw("revocation failed", "donor_id", d.ID(), "error", err)
		d.SetRefreshError(err.Error())
		if updateErr := r.donors.Update(ctx, d); updateErr != nil {
			r.logger.Errorw("failed to record revocation failure", "donor_id", d.ID(), "error", updateErr)
		}
	}
}

// EnsureRevoked removes the donor's Plex access unless it predates this
// system. Exported for the sweeper.
func (r *Reconciler) EnsureRevoked(ctx context.Context, d *donor.Donor) error {
	if d.HadPreexistingAccess() {
		r.audit(ctx, event.KindPlexAccessPreserved, r.donorPayload(d))
		return nil
	}
	if !r.access.Configured(ctx) {
		r.logger.Debugw("plex not configured, skipping revocation", "donor_id", d.ID())
		return nil
	}

	outcome, err := r.access.RevokeDonor(ctx, d)
	if err != nil {
		return fmt.Errorf("failed to revoke plex access: %w", err)
	}

	latest, err := r.invites.LatestActiveForDonor(ctx, d.ID())
	if err == nil {
		if err := r.invites.Revoke(ctx, latest.ID(), true); err != nil {
			return fmt.Errorf("failed to revoke invite row: %w", err)
		}
		if latest.PlexInviteID() != "" {
			if _, cancelErr := r.access.CancelInvite(ctx, latest.PlexInviteID()); cancelErr != nil {
				r.logger.Warnw("failed to cancel plex invite during revocation", "error", cancelErr)
			}
		}
	} else if !stderrors.Is(err, invite.ErrNotFound) {
		return fmt.Errorf("failed to load latest invite: %w", err)
	}

	payload := r.donorPayload(d)
	payload["outcome"] = string(outcome)
	r.audit(ctx, event.KindPlexAccessRevoked, payload)
	r.notifyAdmin(ctx, "Plex access revoked", fmt.Sprintf("Access for donor %s (%s) was revoked.", d.Name(), d.Email()))
	return nil
}

// ExpireAccess is the sweeper entry point for donors whose grace window has
// elapsed: trial donors transition to trial_expired, terminal donors lose
// their share and their expiration marker.
func (r *Reconciler) ExpireAccess(ctx context.Context, d *donor.Donor) error {
	key := string(d.Provider()) + ":" + d.SubscriptionID()
	release, err := r.locks.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()

	// Re-read under the lock; a payment may have raced the sweep.
	fresh, err := r.donors.GetByID(ctx, d.ID())
	if err != nil {
		return err
	}
	if !fresh.AccessExpired(biztime.NowUTC()) {
		return nil
	}

	if fresh.Status() == donor.StatusTrial {
		fresh.ExpireTrial()
	} else {
		fresh.ClearAccessExpiration()
	}
	if err := r.donors.Update(ctx, fresh); err != nil {
		return fmt.Errorf("failed to persist access expiration: %w", err)
	}

	r.ensureRevokedAbsorbed(ctx, fresh)
	return nil
}

// EnsureInvite re-runs invite provisioning for one donor. Exported for the
// admin force-invite flow, which wants the raw error.
func (r *Reconciler) EnsureInvite(ctx context.Context, d *donor.Donor) error {
	key := string(d.Provider()) + ":" + d.SubscriptionID()
	release, err := r.locks.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	return r.ensureInvite(ctx, d)
}
