package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/Charliesj0129/pixAV/internal/logger"
)

// Worker drains the crawl queue on a fixed interval.
type Worker struct {
	ingester *Ingester
	interval time.Duration

	mu        sync.Mutex
	started   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewWorker creates the drain loop for an ingester.
func NewWorker(ingester *Ingester, interval time.Duration) *Worker {
	return &Worker{
		ingester:  ingester,
		interval:  interval,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start begins draining. The first batch runs immediately.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	logger.Info("starting crawl ingester", "interval", w.interval)
	go w.loop(ctx)
}

// Stop shuts the loop down, waiting up to timeout for an in-flight batch.
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
		logger.Info("crawl ingester stopped")
	case <-time.After(timeout):
		logger.Warn("crawl ingester stop timed out")
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.stoppedCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.drain(ctx)
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	created, err := w.ingester.IngestBatch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("crawl ingest failed", "error", err)
		return
	}
	if created > 0 {
		logger.Info("crawl ingest complete", "created", created)
	}
}
