// Package orchestrator promotes pending tasks onto the stage work
// queues. A periodic tick garbage-collects orphaned tasks, checks queue
// backpressure, binds upload tasks to a scheduled account and expires
// stale share links.
//
// Promotion is not atomic across the store and the broker: a crash
// between enqueue and the state update leaves a pending task that gets
// re-dispatched next tick, and workers drop duplicate deliveries of
// finished tasks. Orphan GC and lease expiry cover the remaining gaps.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Charliesj0129/pixAV/internal/logger"
	"github.com/Charliesj0129/pixAV/internal/telemetry"
	"github.com/Charliesj0129/pixAV/pkg/broker"
	"github.com/Charliesj0129/pixAV/pkg/metrics"
	"github.com/Charliesj0129/pixAV/pkg/models"
	"github.com/Charliesj0129/pixAV/pkg/pipeline"
	"github.com/Charliesj0129/pixAV/pkg/store"
)

// TickStats summarizes one scheduling cycle.
type TickStats struct {
	Dispatched       int   `json:"dispatched"`
	SkippedPressure  int   `json:"skipped_pressure"`
	OrphansCleaned   int64 `json:"orphans_cleaned"`
	WaitingNoAccount int   `json:"waiting_no_account"`
	ExpiredVideos    int64 `json:"expired_videos"`
}

// Status reports orchestrator health for the CLI.
type Status struct {
	ActiveAccounts int64                    `json:"active_accounts"`
	Queues         map[string]QueuePressure `json:"queues"`
}

// Orchestrator is the central pipeline coordinator.
type Orchestrator struct {
	cfg     Config
	store   store.Store
	monitor *QueueMonitor
	queues  map[string]*broker.Queue
	metrics metrics.OrchestratorMetrics

	downloadQueue string
	uploadQueue   string
}

// New wires the orchestrator over the store and the stage queues. m may
// be nil to disable metrics.
func New(cfg Config, st store.Store, client *broker.Client, queues broker.QueuesConfig, m metrics.OrchestratorMetrics) *Orchestrator {
	monitored := map[string]*broker.Queue{
		queues.Download: broker.NewQueue(client, queues.Download),
		queues.Upload:   broker.NewQueue(client, queues.Upload),
	}

	return &Orchestrator{
		cfg:           cfg,
		store:         st,
		monitor:       NewQueueMonitor(monitored, cfg.Backpressure, m),
		queues:        monitored,
		metrics:       m,
		downloadQueue: queues.Download,
		uploadQueue:   queues.Upload,
	}
}

// Tick runs one scheduling cycle: orphan GC, pending task promotion and
// the stale share link sweep.
func (o *Orchestrator) Tick(ctx context.Context) (TickStats, error) {
	ctx, span := telemetry.StartTickSpan(ctx)
	defer span.End()

	start := time.Now()
	stats, err := o.tick(ctx)
	if o.metrics != nil {
		o.metrics.ObserveTick(time.Since(start), err)
	}

	span.SetAttributes(
		attribute.Int(telemetry.AttrTickDispatched, stats.Dispatched),
		attribute.Int(telemetry.AttrTickSkipped, stats.SkippedPressure),
		attribute.Int64(telemetry.AttrTickOrphans, stats.OrphansCleaned),
		attribute.Int64(telemetry.AttrTickExpired, stats.ExpiredVideos),
		attribute.Int(telemetry.AttrTickWaiting, stats.WaitingNoAccount),
	)
	if err != nil {
		telemetry.RecordError(ctx, err)
	}
	return stats, err
}

func (o *Orchestrator) tick(ctx context.Context) (TickStats, error) {
	var stats TickStats

	orphans, err := o.store.FailOrphanTasks(ctx, o.cfg.OrphanMaxAge)
	if err != nil {
		return stats, fmt.Errorf("orphan gc failed: %w", err)
	}
	stats.OrphansCleaned = orphans
	if orphans > 0 {
		if o.metrics != nil {
			o.metrics.RecordOrphansCleaned(orphans)
		}
		logger.Warn("cleaned up orphaned tasks", "count", orphans)
	}

	pending, err := o.store.ListPendingTasks(ctx, o.cfg.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("failed to list pending tasks: %w", err)
	}
	if len(pending) == 0 {
		logger.Debug("no pending tasks")
	}

	for _, task := range pending {
		o.promote(ctx, task, &stats)
	}

	expired, err := o.store.ExpireStaleVideos(ctx, o.cfg.FreshnessWindow)
	if err != nil {
		logger.Warn("expiry sweep failed", "error", err)
	} else {
		stats.ExpiredVideos = expired
		if expired > 0 {
			if o.metrics != nil {
				o.metrics.RecordExpiredVideos(expired)
			}
			logger.Info("marked stale videos expired", "count", expired)
		}
	}

	logger.Info("tick complete",
		"dispatched", stats.Dispatched,
		"skipped_pressure", stats.SkippedPressure,
		"orphans_cleaned", stats.OrphansCleaned,
		"waiting_no_account", stats.WaitingNoAccount,
		"expired_videos", stats.ExpiredVideos)
	return stats, nil
}

// promote moves one pending task onto its queue. Failures are logged
// and leave the task pending for a later tick.
func (o *Orchestrator) promote(ctx context.Context, task *models.Task, stats *TickStats) {
	queueName := task.QueueName
	if queueName == "" {
		queueName = o.downloadQueue
	}
	nextState := models.TaskDownloading
	if queueName == o.uploadQueue {
		nextState = models.TaskUploading
	}

	ok, err := o.monitor.Check(ctx, queueName)
	if err != nil {
		logger.Warn("backpressure check failed",
			"task_id", task.ID, "queue", queueName, "error", err)
		return
	}
	if !ok {
		stats.SkippedPressure++
		if o.metrics != nil {
			o.metrics.RecordSkippedPressure(queueName)
		}
		return
	}

	payload := pipeline.PayloadFromTask(task)
	payload.QueueName = queueName

	boundAccount := ""
	if queueName == o.uploadQueue && task.AccountID == nil {
		accountID, err := o.store.NextAccount(ctx, o.cfg.LeaseDuration)
		if errors.Is(err, models.ErrNoActiveAccounts) {
			if o.cfg.NoAccountPolicy == NoAccountFail {
				if err := o.store.UpdateTaskState(ctx, task.ID, models.TaskFailed, err.Error()); err != nil {
					logger.Warn("failed to fail accountless task", "task_id", task.ID, "error", err)
				}
				return
			}
			stats.WaitingNoAccount++
			logger.Info("no schedulable account, task stays pending", "task_id", task.ID)
			return
		}
		if err != nil {
			logger.Warn("account scheduling failed", "task_id", task.ID, "error", err)
			return
		}

		if err := o.store.AssignTaskAccount(ctx, task.ID, accountID); err != nil {
			logger.Warn("failed to assign account",
				"task_id", task.ID, "account_id", accountID, "error", err)
			return
		}
		payload.AccountID = accountID
		boundAccount = accountID
	}

	queue, registered := o.queues[queueName]
	if !registered {
		logger.Warn("task routed to unregistered queue",
			"task_id", task.ID, "queue", queueName)
		return
	}
	if _, err := queue.Push(ctx, payload); err != nil {
		logger.Warn("failed to enqueue task",
			"task_id", task.ID, "queue", queueName, "error", err)
		return
	}

	if err := o.store.UpdateTaskState(ctx, task.ID, nextState, ""); err != nil {
		logger.Warn("failed to transition dispatched task",
			"task_id", task.ID, "state", nextState, "error", err)
		return
	}

	if boundAccount != "" {
		if err := o.store.MarkUsed(ctx, boundAccount); err != nil {
			logger.Warn("failed to mark account used",
				"account_id", boundAccount, "error", err)
		}
	}

	stats.Dispatched++
	if o.metrics != nil {
		o.metrics.RecordDispatched(queueName)
	}
	logger.Info("dispatched task",
		"task_id", task.ID, "queue", queueName, "state", nextState)
}

// Status reports active accounts and queue pressures.
func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	active, err := o.store.ActiveCount(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("failed to count active accounts: %w", err)
	}
	pressures, err := o.monitor.AllPressures(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{ActiveAccounts: active, Queues: pressures}, nil
}
