package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Charliesj0129/pixAV/internal/logger"
	"github.com/Charliesj0129/pixAV/pkg/broker"
	"github.com/Charliesj0129/pixAV/pkg/metrics"
	"github.com/Charliesj0129/pixAV/pkg/models"
	"github.com/Charliesj0129/pixAV/pkg/store"
)

// FailureConfig wires a stage's failure policy.
type FailureConfig struct {
	// Stage is recorded in dead-letter payloads ("download", "upload").
	Stage string

	// Queue is the stage's live work queue, used for retry re-pushes
	// and delayed replays.
	Queue *broker.Queue

	// DLQ receives terminally failed payloads.
	DLQ *broker.Queue

	// Replays is the delayed replay set. Nil disables delayed replay.
	Replays *broker.DelaySet

	// RetryVideoStatus is the status a video rolls back to when its
	// task retries: discovered for the download stage, downloaded for
	// the upload stage.
	RetryVideoStatus models.VideoStatus

	// DefaultMaxRetries is the retry budget stamped on replayed
	// payloads.
	DefaultMaxRetries int

	// ReplayMax caps how many times a dead-letter entry may be
	// replayed. Zero disables scheduling.
	ReplayMax int

	// ReplayBackoff is the per-cycle delay schedule. Entries past the
	// end reuse the last delay.
	ReplayBackoff []time.Duration

	// Metrics collects the failure funnel. Nil disables collection.
	Metrics metrics.PipelineMetrics
}

// FailureHandler applies the shared retry and dead-letter policy.
//
// Every store write happens before the corresponding queue operation,
// so a crash between the two leaves a pending task the orchestrator
// re-promotes rather than a payload with no matching row.
type FailureHandler struct {
	store store.Store
	cfg   FailureConfig
}

// NewFailureHandler creates a failure handler for one stage.
func NewFailureHandler(st store.Store, cfg FailureConfig) *FailureHandler {
	return &FailureHandler{store: st, cfg: cfg}
}

// HandleFailure applies the failure policy after a stage attempt fails.
//
// Transient errors within the retry budget reset the task to pending
// with a bumped counter and re-push it; permanent or exhausted failures
// move task and video to failed and dead-letter the payload. Returns
// whether the task was scheduled for another attempt.
func (h *FailureHandler) HandleFailure(ctx context.Context, task *models.Task, p Payload, taskErr error) (bool, error) {
	msg := taskErr.Error()

	if !IsPermanent(taskErr) && !task.RetriesExhausted() {
		retries := task.Retries + 1
		if err := h.store.SetTaskRetry(ctx, task.ID, retries, msg); err != nil {
			return false, fmt.Errorf("failed to set retry on task %s: %w", task.ID, err)
		}
		if err := h.rollBackVideo(ctx, task.VideoID, h.cfg.RetryVideoStatus); err != nil {
			return false, err
		}

		retry := PayloadFromTask(task)
		retry.Retries = retries
		retry.QueueName = h.cfg.Queue.Name()
		retry.DLQReplays = p.DLQReplays
		if _, err := h.cfg.Queue.Push(ctx, retry); err != nil {
			return false, fmt.Errorf("failed to re-push task %s: %w", task.ID, err)
		}

		if h.cfg.Metrics != nil {
			h.cfg.Metrics.RecordRetry(h.cfg.Stage)
		}
		logger.Warn("task retry scheduled",
			"stage", h.cfg.Stage,
			"task_id", task.ID,
			"retries", retries,
			"max_retries", task.MaxRetries,
			"error", msg)
		return true, nil
	}

	if err := h.store.UpdateTaskState(ctx, task.ID, models.TaskFailed, msg); err != nil {
		return false, fmt.Errorf("failed to fail task %s: %w", task.ID, err)
	}
	if err := h.rollBackVideo(ctx, task.VideoID, models.VideoFailed); err != nil {
		return false, err
	}

	dlq := DLQPayload{
		Payload:      PayloadFromTask(task),
		Stage:        h.cfg.Stage,
		Attempts:     task.Retries,
		ErrorMessage: msg,
		ErrorKind:    Kind(taskErr),
		FailedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	dlq.DLQReplays = p.DLQReplays
	if _, err := h.cfg.DLQ.Push(ctx, dlq); err != nil {
		return false, fmt.Errorf("failed to dead-letter task %s: %w", task.ID, err)
	}

	if h.cfg.Metrics != nil {
		h.cfg.Metrics.RecordDeadLetter(h.cfg.Stage, dlq.ErrorKind)
	}
	logger.Error("task dead-lettered",
		"stage", h.cfg.Stage,
		"task_id", task.ID,
		"attempts", task.Retries,
		"error_kind", dlq.ErrorKind,
		"error", msg)

	if h.cfg.Replays != nil {
		scheduled, err := h.scheduleReplay(ctx, dlq)
		if err != nil {
			return false, err
		}
		if scheduled {
			logger.Warn("task scheduled for delayed dlq replay",
				"stage", h.cfg.Stage,
				"task_id", task.ID,
				"dlq_replays", dlq.DLQReplays+1)
		}
	}

	return false, nil
}

// rollBackVideo moves the video to the given status. A missing video is
// tolerated: tasks can dead-letter precisely because their video row is
// gone.
func (h *FailureHandler) rollBackVideo(ctx context.Context, videoID string, status models.VideoStatus) error {
	err := h.store.UpdateVideoStatus(ctx, videoID, status)
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrVideoNotFound) {
		logger.Warn("video missing during rollback",
			"stage", h.cfg.Stage, "video_id", videoID, "status", status)
		return nil
	}
	return fmt.Errorf("failed to move video %s to %s: %w", videoID, status, err)
}

// scheduleReplay puts an eligible dead-letter entry on the delay set
// with its replay counter bumped.
func (h *FailureHandler) scheduleReplay(ctx context.Context, dlq DLQPayload) (bool, error) {
	if h.cfg.ReplayMax <= 0 || len(h.cfg.ReplayBackoff) == 0 {
		return false, nil
	}
	if !ReplayEligible(dlq) {
		return false, nil
	}
	if dlq.DLQReplays >= h.cfg.ReplayMax {
		return false, nil
	}

	idx := dlq.DLQReplays
	if idx > len(h.cfg.ReplayBackoff)-1 {
		idx = len(h.cfg.ReplayBackoff) - 1
	}
	delay := h.cfg.ReplayBackoff[idx]

	scheduled := dlq
	scheduled.DLQReplays++
	raw, err := json.Marshal(scheduled)
	if err != nil {
		return false, fmt.Errorf("failed to marshal replay entry: %w", err)
	}
	if err := h.cfg.Replays.Add(ctx, raw, time.Now().Add(delay)); err != nil {
		return false, fmt.Errorf("failed to schedule replay: %w", err)
	}
	return true, nil
}

// ReplayDue moves due dead-letter entries back onto the live queue.
//
// Claiming an entry removes it from the delay set first, so with
// multiple worker replicas each entry is replayed exactly once. The
// replayed task is reset to pending with a fresh retry budget and its
// video rolled back so the stage can pick it up again.
func (h *FailureHandler) ReplayDue(ctx context.Context, now time.Time, limit int) (int, error) {
	if h.cfg.Replays == nil {
		return 0, nil
	}

	members, err := h.cfg.Replays.Due(ctx, now, int64(limit))
	if err != nil {
		return 0, fmt.Errorf("failed to list due replays: %w", err)
	}

	replayed := 0
	for _, member := range members {
		claimed, err := h.cfg.Replays.Claim(ctx, member)
		if err != nil {
			return replayed, fmt.Errorf("failed to claim replay entry: %w", err)
		}
		if !claimed {
			continue
		}

		entry, err := ParseDLQPayload([]byte(member))
		if err != nil {
			logger.Warn("skipping malformed replay entry", "stage", h.cfg.Stage, "error", err)
			continue
		}
		if entry.TaskID == "" || entry.VideoID == "" {
			logger.Warn("skipping replay entry with missing ids", "stage", h.cfg.Stage)
			continue
		}

		replay := Payload{
			TaskID:     entry.TaskID,
			VideoID:    entry.VideoID,
			QueueName:  h.cfg.Queue.Name(),
			Retries:    0,
			MaxRetries: h.cfg.DefaultMaxRetries,
			AccountID:  entry.AccountID,
			DLQReplays: entry.DLQReplays,
		}
		if _, err := h.cfg.Queue.Push(ctx, replay); err != nil {
			logger.Error("failed to re-push replay entry",
				"stage", h.cfg.Stage, "task_id", entry.TaskID, "error", err)
			continue
		}

		replayMsg := fmt.Sprintf("replayed from dlq (%d)", entry.DLQReplays)
		if err := h.store.SetTaskRetry(ctx, entry.TaskID, 0, replayMsg); err != nil {
			logger.Warn("failed to reset replayed task",
				"stage", h.cfg.Stage, "task_id", entry.TaskID, "error", err)
		}
		if err := h.store.UpdateVideoStatus(ctx, entry.VideoID, h.cfg.RetryVideoStatus); err != nil {
			logger.Warn("failed to roll back replayed video",
				"stage", h.cfg.Stage, "video_id", entry.VideoID, "error", err)
		}

		if h.cfg.Metrics != nil {
			h.cfg.Metrics.RecordReplay(h.cfg.Stage)
		}
		replayed++
	}

	return replayed, nil
}
