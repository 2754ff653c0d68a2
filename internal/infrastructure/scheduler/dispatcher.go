package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	deliveryUsecases "github.com/opencat-io/opencat/internal/application/delivery/usecases"
	"github.com/opencat-io/opencat/internal/shared/config"
	"github.com/opencat-io/opencat/internal/shared/goroutine"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultWorkers      = 4
)

// Dispatcher drives webhook delivery. It runs a pool of workers, each
// polling for due deliveries and attempting them. Workers coordinate only
// through the database claim lease, so multiple dispatcher processes can run
// side by side without double-sending.
type Dispatcher struct {
	dispatchUC   *deliveryUsecases.DispatchDueUseCase
	pollInterval time.Duration
	workers      int
	logger       logger.Interface
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func NewDispatcher(
	dispatchUC *deliveryUsecases.DispatchDueUseCase,
	cfg config.WebhookConfig,
	logger logger.Interface,
) *Dispatcher {
	pollInterval := cfg.PollInterval()
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	return &Dispatcher{
		dispatchUC:   dispatchUC,
		pollInterval: pollInterval,
		workers:      workers,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}
}

// Start launches the worker pool. It returns immediately; use Stop for
// graceful shutdown.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Infow("starting webhook dispatcher",
		"workers", d.workers,
		"poll_interval", d.pollInterval)

	for i := 0; i < d.workers; i++ {
		worker := i
		d.wg.Add(1)
		goroutine.SafeGo(d.logger, fmt.Sprintf("webhook-dispatcher-%d", worker), func() {
			defer d.wg.Done()
			d.runWorker(ctx, worker)
		})
	}
}

// Stop stops all workers and waits for in-flight attempts to finish.
// Safe to call multiple times.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.logger.Infow("stopping webhook dispatcher")
		close(d.stopChan)
		d.wg.Wait()
		d.logger.Infow("webhook dispatcher stopped")
	})
}

func (d *Dispatcher) runWorker(ctx context.Context, worker int) {
	// Drain immediately on startup, then fall back to the poll cadence.
	d.poll(ctx, worker)

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.poll(ctx, worker)
		}
	}
}

// poll keeps dispatching while there is work, so a backlog is drained at
// full speed rather than one batch per tick.
func (d *Dispatcher) poll(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopChan:
			return
		default:
		}

		attempted, err := d.dispatchUC.Execute(ctx)
		if err != nil {
			d.logger.Errorw("dispatch pass failed",
				"worker", worker,
				"error", err)
			return
		}
		if attempted == 0 {
			return
		}
	}
}
