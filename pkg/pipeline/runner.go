package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/Charliesj0129/pixAV/internal/logger"
	"github.com/Charliesj0129/pixAV/pkg/broker"
	"github.com/Charliesj0129/pixAV/pkg/metrics"
)

// RunnerConfig holds configuration for a stage worker pool.
type RunnerConfig struct {
	// Name identifies the pool in logs.
	Name string

	// Queue is the work queue the pool consumes.
	Queue *broker.Queue

	// Workers is the number of concurrent workers.
	// Default: 1
	Workers int

	// PopTimeout bounds each blocking pop.
	// Default: 5s
	PopTimeout time.Duration

	// IdleSleep is the pause between iterations when LoopHook reports
	// the pool should not consume.
	// Default: 1s
	IdleSleep time.Duration

	// LoopHook runs at the top of every worker iteration. Returning
	// false skips the pop for this iteration (pause gate, replay
	// sweeps). Nil means always consume.
	LoopHook func(ctx context.Context) bool

	// Handle processes one raw payload.
	Handle func(ctx context.Context, raw []byte) error

	// Metrics collects per-stage throughput and duration. Nil disables
	// collection.
	Metrics metrics.PipelineMetrics
}

// Runner consumes a work queue with a fixed pool of workers.
//
// It decouples queue consumption from stage logic: stages provide a
// Handle func and an optional per-iteration hook, the runner owns
// lifecycle, blocking pops and failure counting.
type Runner struct {
	cfg RunnerConfig

	wg        sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}

	mu          sync.Mutex
	started     bool
	processed   int
	failed      int
	lastError   error
	lastErrorAt time.Time
}

// NewRunner creates a worker pool for a stage.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 5 * time.Second
	}
	if cfg.IdleSleep <= 0 {
		cfg.IdleSleep = time.Second
	}

	return &Runner{
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start begins consuming the queue.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	logger.Info("starting workers",
		"pool", r.cfg.Name,
		"workers", r.cfg.Workers,
		"queue", r.cfg.Queue.Name())

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}

	go func() {
		r.wg.Wait()
		close(r.stoppedCh)
	}()
}

// Stop shuts the pool down, waiting up to timeout for workers to finish
// their current payload.
func (r *Runner) Stop(timeout time.Duration) {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	close(r.stopCh)

	select {
	case <-r.stoppedCh:
		logger.Info("workers stopped", "pool", r.cfg.Name)
	case <-time.After(timeout):
		logger.Warn("worker stop timed out", "pool", r.cfg.Name)
	}
}

// Stats returns processed and failed payload counts.
func (r *Runner) Stats() (processed, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed, r.failed
}

func (r *Runner) worker(ctx context.Context, id int) {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if r.cfg.LoopHook != nil && !r.cfg.LoopHook(ctx) {
			if !r.sleep(ctx, r.cfg.IdleSleep) {
				return
			}
			continue
		}

		raw, err := r.cfg.Queue.Pop(ctx, r.cfg.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("queue pop failed",
				"pool", r.cfg.Name, "worker", id, "error", err)
			if !r.sleep(ctx, r.cfg.IdleSleep) {
				return
			}
			continue
		}
		if raw == nil {
			continue
		}

		start := time.Now()
		err = r.cfg.Handle(ctx, raw)
		if r.cfg.Metrics != nil {
			r.cfg.Metrics.RecordTask(r.cfg.Name, time.Since(start), err)
		}
		if err != nil {
			r.mu.Lock()
			r.failed++
			r.lastError = err
			r.lastErrorAt = time.Now()
			r.mu.Unlock()
			logger.Error("payload handling failed",
				"pool", r.cfg.Name, "worker", id, "error", err)
			continue
		}

		r.mu.Lock()
		r.processed++
		r.mu.Unlock()
	}
}

// sleep waits for d, returning false when the runner is stopping.
func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-r.stopCh:
		return false
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
