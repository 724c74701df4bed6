// Package sweeper is the clock-driven half of reconciliation: it revokes
// access for donors past their grace window, refreshes ambiguous PayPal
// subscription statuses, and repairs drift between the store and the Plex
// share list. Every pass contends for the same per-subscription locks as the
// webhook path, so a sweep can never race a live event.
package sweeper

import (
	"context"
	"time"

	"plexward/internal/application/access"
	"plexward/internal/application/ingest"
	"plexward/internal/application/reconciler"
	"plexward/internal/domain/donor"
	"plexward/internal/domain/event"
	"plexward/internal/infrastructure/plex"
	"plexward/internal/shared/biztime"
	"plexward/internal/shared/logger"
)

// ShareLister is the slice of the access controller the drift pass reads.
type ShareLister interface {
	Configured(ctx context.Context) bool
	ListCurrentShares(ctx context.Context) ([]plex.Share, error)
}

// Config tunes the sweeper.
type Config struct {
	// StatusRefreshInterval bounds how stale a PayPal donor's last refresh
	// may be before the sweep re-queries the provider.
	StatusRefreshInterval time.Duration
	// DriftRepair enables the store-versus-Plex comparison pass.
	DriftRepair bool
}

type Sweeper struct {
	donors     donor.Repository
	events     event.Repository
	reconciler *reconciler.Reconciler
	shares     ShareLister
	paypal     reconciler.SubscriptionFetcher
	cfg        Config
	logger     logger.Interface
}

func New(
	donors donor.Repository,
	events event.Repository,
	rec *reconciler.Reconciler,
	shares ShareLister,
	paypalFetcher reconciler.SubscriptionFetcher,
	cfg Config,
	log logger.Interface,
) *Sweeper {
	if cfg.StatusRefreshInterval <= 0 {
		cfg.StatusRefreshInterval = 6 * time.Hour
	}
	return &Sweeper{
		donors:     donors,
		events:     events,
		reconciler: rec,
		shares:     shares,
		paypal:     paypalFetcher,
		cfg:        cfg,
		logger:     log,
	}
}

// Execute runs one full sweep and reports how many donors it touched.
// Per-donor failures are logged and skipped so one bad record cannot stall
// the rest of the pass.
func (s *Sweeper) Execute(ctx context.Context) (int, error) {
	started := biztime.NowUTC()

	expired := s.expireAccess(ctx, started)
	refreshed := s.refreshStatuses(ctx, started)
	drifted := s.repairDrift(ctx)

	if err := s.events.Log(ctx, event.KindSweepTick, map[string]any{
		"expired":   expired,
		"refreshed": refreshed,
		"drifted":   drifted,
		"duration":  time.Since(started).String(),
	}); err != nil {
		s.logger.Errorw("failed to log sweep tick", "error", err)
	}

	return expired + refreshed + drifted, nil
}

// expireAccess revokes donors whose grace window has elapsed.
func (s *Sweeper) expireAccess(ctx context.Context, now time.Time) int {
	donors, err := s.donors.ListExpiredAccess(ctx, now)
	if err != nil {
		s.logger.Errorw("failed to list expired-access donors", "error", err)
		return 0
	}

	processed := 0
	for _, d := range donors {
		if ctx.Err() != nil {
			return processed
		}
		if err := s.reconciler.ExpireAccess(ctx, d); err != nil {
			s.logger.Errorw("failed to expire donor access",
				"donor_id", d.ID(),
				"error", err,
			)
			continue
		}
		processed++
	}
	return processed
}

// refreshStatuses re-queries PayPal for donors stuck in ambiguous states or
// whose last refresh has gone stale.
func (s *Sweeper) refreshStatuses(ctx context.Context, now time.Time) int {
	if s.paypal == nil {
		return 0
	}

	staleBefore := now.Add(-s.cfg.StatusRefreshInterval)
	donors, err := s.donors.ListForStatusRefresh(ctx, staleBefore)
	if err != nil {
		s.logger.Errorw("failed to list donors for status refresh", "error", err)
		return 0
	}

	refreshed := 0
	for _, d := range donors {
		if ctx.Err() != nil {
			return refreshed
		}
		if err := s.refreshOne(ctx, d); err != nil {
			s.logger.Errorw("status refresh failed",
				"donor_id", d.ID(),
				"subscription_id", d.SubscriptionID(),
				"error", err,
			)
			d.SetRefreshError(err.Error())
			if updateErr := s.donors.Update(ctx, d); updateErr != nil {
				s.logger.Errorw("failed to record refresh error", "donor_id", d.ID(), "error", updateErr)
			}
			continue
		}
		refreshed++
	}
	return refreshed
}

func (s *Sweeper) refreshOne(ctx context.Context, d *donor.Donor) error {
	sub, err := s.paypal.GetSubscription(ctx, d.SubscriptionID())
	if err != nil {
		return err
	}

	mapped := ingest.MapPayPalStatus(sub.Status)
	previous := d.Status()
	if mapped != previous {
		if err := d.SetStatus(mapped); err != nil {
			return err
		}
		s.logger.Infow("provider status refreshed",
			"donor_id", d.ID(),
			"from", string(previous),
			"to", string(mapped),
		)
	}
	d.MarkStatusRefreshed(biztime.NowUTC())
	return s.donors.Update(ctx, d)
}

// repairDrift clears recorded Plex identities for donors who no longer
// appear in the share list. They un-shared themselves; keeping the stale
// identity would mis-match a future user-list scan.
func (s *Sweeper) repairDrift(ctx context.Context) int {
	if !s.cfg.DriftRepair || s.shares == nil || !s.shares.Configured(ctx) {
		return 0
	}

	shares, err := s.shares.ListCurrentShares(ctx)
	if err != nil {
		s.logger.Errorw("failed to list current shares", "error", err)
		return 0
	}
	donors, err := s.donors.ListWithPlexIdentity(ctx)
	if err != nil {
		s.logger.Errorw("failed to list donors with plex identity", "error", err)
		return 0
	}

	cleared := 0
	for _, d := range donors {
		if ctx.Err() != nil {
			return cleared
		}
		if shareFor(d, shares) != nil {
			continue
		}
		d.ClearPlexIdentity()
		if err := s.donors.Update(ctx, d); err != nil {
			s.logger.Errorw("failed to clear plex identity", "donor_id", d.ID(), "error", err)
			continue
		}
		if err := s.events.Log(ctx, event.KindPlexAccessSynced, map[string]any{
			"donor_id": d.ID(),
			"action":   "identity_cleared",
		}); err != nil {
			s.logger.Errorw("failed to log drift repair", "error", err)
		}
		cleared++
	}
	return cleared
}

func shareFor(d *donor.Donor, shares []plex.Share) *plex.Share {
	for i := range shares {
		if access.MatchShare(d, &shares[i]) {
			return &shares[i]
		}
	}
	return nil
}
