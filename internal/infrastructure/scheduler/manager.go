// Package scheduler provides background job management: periodic sweeps via
// gocron and the webhook dispatcher loop.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/opencat-io/opencat/internal/shared/logger"
)

// BatchJob is a scheduled batch processing job. Each Execute call processes
// one batch and returns the number of items processed.
type BatchJob interface {
	Execute(ctx context.Context) (int, error)
}

// SchedulerManager runs the periodic sweeps on a single gocron instance:
// the event fan-out sweep (safety net behind synchronous fan-out) and the
// transaction expiry sweep.
type SchedulerManager struct {
	scheduler gocron.Scheduler
	logger    logger.Interface

	started   bool
	startedMu sync.RWMutex
}

// NewSchedulerManager creates a scheduler manager. All job times are UTC.
func NewSchedulerManager(log logger.Interface) (*SchedulerManager, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, err
	}

	return &SchedulerManager{
		scheduler: scheduler,
		logger:    log,
	}, nil
}

// RegisterFanOutSweep registers the fan-out safety-net sweep. It picks up
// events whose synchronous fan-out attempt failed, so every recorded event
// eventually gets its delivery rows.
func (m *SchedulerManager) RegisterFanOutSweep(job BatchJob, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}

	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			m.runBatch(ctx, "fan-out sweep", job)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("event-fanout-sweep"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered fan-out sweep", "interval", interval)
	return nil
}

// RegisterExpirySweep registers the transaction expiry sweep, which turns
// lapsed grants into expired ledger state and emits the resulting
// entitlement change events.
func (m *SchedulerManager) RegisterExpirySweep(job BatchJob, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}

	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			m.runBatch(ctx, "expiry sweep", job)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("transaction-expiry-sweep"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered expiry sweep", "interval", interval)
	return nil
}

func (m *SchedulerManager) runBatch(ctx context.Context, name string, job BatchJob) {
	start := time.Now()
	count, err := job.Execute(ctx)
	if err != nil {
		m.logger.Errorw("scheduled job failed",
			"job", name,
			"error", err,
			"duration", time.Since(start),
		)
		return
	}
	if count > 0 {
		m.logger.Infow("scheduled job processed batch",
			"job", name,
			"count", count,
			"duration", time.Since(start),
		)
	}
}

// Start begins executing registered jobs. Safe to call once.
func (m *SchedulerManager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()
	if m.started {
		m.logger.Warnw("scheduler already started")
		return
	}

	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler started", "jobs", len(m.scheduler.Jobs()))
}

// Stop shuts the scheduler down and waits for running jobs to finish.
func (m *SchedulerManager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()
	if !m.started {
		return nil
	}

	if err := m.scheduler.Shutdown(); err != nil {
		m.logger.Errorw("failed to shutdown scheduler", "error", err)
		return err
	}
	m.started = false
	m.logger.Infow("scheduler stopped")
	return nil
}
