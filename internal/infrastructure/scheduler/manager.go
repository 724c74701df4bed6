// Package scheduler manages periodic jobs using gocron v2.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"plexward/internal/shared/biztime"
	"plexward/internal/shared/logger"
)

// BatchJob is one scheduled pass over a batch of records. Execute returns
// the number of items it processed.
type BatchJob interface {
	Execute(ctx context.Context) (int, error)
}

// DefaultSweepInterval is how often the sweep runs when no interval is
// configured.
const DefaultSweepInterval = 5 * time.Minute

// Manager owns the single gocron scheduler instance and the jobs
// registered on it.
type Manager struct {
	scheduler gocron.Scheduler
	logger    logger.Interface

	started   bool
	startedMu sync.RWMutex
}

// NewManager initializes gocron in the business timezone.
func NewManager(log logger.Interface) (*Manager, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(biztime.Location()),
	)
	if err != nil {
		return nil, err
	}

	return &Manager{
		scheduler: scheduler,
		logger:    log,
	}, nil
}

// RegisterSweepJob schedules the reconciliation sweep. The first pass runs
// immediately so a restart repairs state without waiting out the interval.
func (m *Manager) RegisterSweepJob(sweep BatchJob, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			m.runSweep(ctx, sweep)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("sweep"),
		gocron.WithName("reconciliation-sweep"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered sweep job", "interval", interval.String())
	return nil
}

func (m *Manager) runSweep(ctx context.Context, sweep BatchJob) {
	m.logger.Debugw("sweep started")

	startTime := biztime.NowUTC()
	processed, err := sweep.Execute(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.logger.Errorw("sweep failed",
			"error", err,
			"duration", time.Since(startTime),
		)
		return
	}

	if processed > 0 {
		m.logger.Infow("sweep completed",
			"processed", processed,
			"duration", time.Since(startTime),
		)
	} else {
		m.logger.Debugw("sweep completed with nothing to do",
			"duration", time.Since(startTime),
		)
	}
}

// Start starts the scheduler and all registered jobs.
func (m *Manager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return
	}

	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler started", "job_count", len(m.scheduler.Jobs()))
}

// Stop shuts the scheduler down and waits for running jobs to finish.
func (m *Manager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if !m.started {
		return nil
	}

	err := m.scheduler.Shutdown()
	m.started = false

	if err != nil {
		m.logger.Errorw("scheduler shutdown with error", "error", err)
		return err
	}

	m.logger.Infow("scheduler stopped")
	return nil
}

// IsStarted reports whether the scheduler is running.
func (m *Manager) IsStarted() bool {
	m.startedMu.RLock()
	defer m.startedMu.RUnlock()
	return m.started
}
