package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/Charliesj0129/pixAV/internal/logger"
)

// Worker drives the orchestrator tick loop on a fixed interval.
type Worker struct {
	orch     *Orchestrator
	interval time.Duration

	mu        sync.Mutex
	started   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewWorker creates the tick loop for an orchestrator.
func NewWorker(orch *Orchestrator) *Worker {
	return &Worker{
		orch:      orch,
		interval:  orch.cfg.TickInterval,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start begins ticking. The first tick runs immediately.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	logger.Info("starting orchestrator", "tick_interval", w.interval)
	go w.loop(ctx)
}

// Stop shuts the loop down, waiting up to timeout for an in-flight tick.
func (w *Worker) Stop(timeout time.Duration) {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.stoppedCh:
		logger.Info("orchestrator stopped")
	case <-time.After(timeout):
		logger.Warn("orchestrator stop timed out")
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.stoppedCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	if _, err := w.orch.Tick(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("tick failed", "error", err)
	}
}
