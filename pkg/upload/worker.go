package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Charliesj0129/pixAV/internal/logger"
	"github.com/Charliesj0129/pixAV/internal/telemetry"
	"github.com/Charliesj0129/pixAV/pkg/broker"
	"github.com/Charliesj0129/pixAV/pkg/mediastore"
	"github.com/Charliesj0129/pixAV/pkg/metrics"
	"github.com/Charliesj0129/pixAV/pkg/models"
	"github.com/Charliesj0129/pixAV/pkg/pipeline"
	"github.com/Charliesj0129/pixAV/pkg/store"
)

// dlqReplayScanLimit caps how many due dead letters one sweep moves.
const dlqReplayScanLimit = 20

// Worker consumes the upload queue. Each iteration honors the pause
// gate, replays due dead letters, and serializes attempts through the
// cluster-wide single-flight lock when concurrency is capped at one.
type Worker struct {
	runner   *pipeline.Runner
	store    store.Store
	media    mediastore.Store
	injector Injector
	failures *pipeline.FailureHandler
	queue    *broker.Queue
	pause    *broker.PauseGate

	// mutex is nil when max_concurrency > 1; then the workers rely on
	// queue pop atomicity alone.
	mutex   *broker.Mutex
	lockKey string
}

// NewWorker wires the upload stage from configuration. m may be nil to
// disable metrics.
func NewWorker(cfg Config, st store.Store, client *broker.Client, media mediastore.Store, queues broker.QueuesConfig, pauseKey string, m metrics.PipelineMetrics) (*Worker, error) {
	queue := broker.NewQueue(client, queues.Upload)
	dlq := broker.NewQueue(client, broker.DLQName(queues.Upload))

	failureCfg := pipeline.FailureConfig{
		Stage:             pipeline.StageUpload,
		Queue:             queue,
		DLQ:               dlq,
		RetryVideoStatus:  models.VideoDownloaded,
		DefaultMaxRetries: cfg.MaxRetries,
		Metrics:           m,
	}
	if cfg.DLQReplay.Max > 0 {
		failureCfg.Replays = broker.NewDelaySet(client, broker.ReplaySetName(queues.Upload))
		failureCfg.ReplayMax = cfg.DLQReplay.Max
		failureCfg.ReplayBackoff = cfg.DLQReplay.Backoff
	}

	var injector Injector
	if cfg.Mode == ModeLocal {
		injector = NewLocalInjector(media, cfg.LocalShareScheme)
		logger.Warn("upload stage running in local mode, no container runtime")
	} else {
		containers, err := NewDockerManager(cfg.Redroid)
		if err != nil {
			return nil, fmt.Errorf("failed to create container manager: %w", err)
		}
		adb := NewADB(cfg.Redroid.ADBBin, cfg.Redroid.ADBTimeout)
		injector = NewRedroidInjector(RedroidInjectorConfig{
			Containers:    containers,
			Uploader:      NewADBUploader(adb),
			Verifier:      NewPhotosVerifier(adb, 0),
			Media:         media,
			ReadyTimeout:  cfg.ReadyTimeout,
			VerifyTimeout: cfg.VerifyTimeout,
			TaskTimeout:   cfg.TaskTimeout,
		})
	}

	w := &Worker{
		store:    st,
		media:    media,
		injector: injector,
		failures: pipeline.NewFailureHandler(st, failureCfg),
		queue:    queue,
		pause:    broker.NewPauseGate(client, pauseKey),
		lockKey:  cfg.LockKey,
	}
	if cfg.MaxConcurrency <= 1 {
		w.mutex = broker.NewMutex(client, cfg.LockKey, cfg.LockTTL)
	}

	w.runner = pipeline.NewRunner(pipeline.RunnerConfig{
		Name:     "upload",
		Queue:    queue,
		Workers:  cfg.MaxConcurrency,
		LoopHook: w.loopHook,
		Handle:   w.handle,
		Metrics:  m,
	})
	return w, nil
}

// NewWorkerWithInjector builds a worker around an existing injector
// and failure handler, used by tests.
func NewWorkerWithInjector(st store.Store, media mediastore.Store, injector Injector, failures *pipeline.FailureHandler, queue *broker.Queue, pause *broker.PauseGate, mutex *broker.Mutex, workers int) *Worker {
	w := &Worker{
		store:    st,
		media:    media,
		injector: injector,
		failures: failures,
		queue:    queue,
		pause:    pause,
		mutex:    mutex,
	}
	w.runner = pipeline.NewRunner(pipeline.RunnerConfig{
		Name:     "upload",
		Queue:    queue,
		Workers:  workers,
		LoopHook: w.loopHook,
		Handle:   w.handle,
	})
	return w
}

// Start launches the consumer pool.
func (w *Worker) Start(ctx context.Context) {
	w.runner.Start(ctx)
}

// Stop shuts the pool down, waiting up to timeout.
func (w *Worker) Stop(timeout time.Duration) {
	w.runner.Stop(timeout)
}

// Stats returns processed and failed payload counts.
func (w *Worker) Stats() (processed, failed int) {
	return w.runner.Stats()
}

// loopHook runs before each pop: pause gate first, then a dead-letter
// replay sweep.
func (w *Worker) loopHook(ctx context.Context) bool {
	if w.pause != nil {
		paused, err := w.pause.Paused(ctx)
		if err != nil {
			logger.Warn("failed to check pause gate", "error", err)
		} else if paused {
			logger.Debug("uploads paused, skip polling")
			return false
		}
	}

	replayed, err := w.failures.ReplayDue(ctx, time.Now(), dlqReplayScanLimit)
	if err != nil {
		logger.Warn("dlq replay sweep failed", "error", err)
	} else if replayed > 0 {
		logger.Warn("replayed tasks from upload dlq", "count", replayed)
	}
	return true
}

// handle processes one payload under the single-flight lock.
func (w *Worker) handle(ctx context.Context, raw []byte) error {
	p, err := pipeline.ParsePayload(raw)
	if err != nil {
		return fmt.Errorf("invalid upload payload: %w", err)
	}

	if w.mutex != nil {
		token, ok, err := w.mutex.TryLock(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire upload lock: %w", err)
		}
		if !ok {
			if _, err := w.queue.PushRaw(ctx, raw); err != nil {
				return fmt.Errorf("upload lock busy and requeue failed: %w", err)
			}
			logger.Info("upload lock busy, payload requeued", "key", w.lockKey)
			w.sleep(ctx, time.Second)
			return nil
		}
		defer func() {
			// Release even when the attempt was cancelled.
			if err := w.mutex.Unlock(context.WithoutCancel(ctx), token); err != nil {
				logger.Warn("failed to release upload lock", "key", w.lockKey, "error", err)
			}
		}()
	}

	return w.process(ctx, p)
}

func (w *Worker) process(ctx context.Context, p pipeline.Payload) error {
	attrs := []attribute.KeyValue{telemetry.TaskRetries(p.Retries)}
	if p.AccountID != "" {
		attrs = append(attrs, telemetry.AccountID(p.AccountID))
	}
	ctx, span := telemetry.StartTaskSpan(ctx, pipeline.StageUpload, p.TaskID, p.VideoID, attrs...)
	defer span.End()

	lc := logger.NewLogContext("upload").
		WithTask(p.TaskID, p.VideoID).
		WithQueue(p.QueueName).
		WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	if p.AccountID != "" {
		lc = lc.WithAccount(p.AccountID)
	}
	ctx = logger.WithContext(ctx, lc)

	err := w.processTask(ctx, p)
	if err != nil {
		telemetry.RecordError(ctx, err)
	}
	return err
}

func (w *Worker) processTask(ctx context.Context, p pipeline.Payload) error {
	task, err := w.store.GetTask(ctx, p.TaskID)
	if errors.Is(err, models.ErrTaskNotFound) {
		logger.WarnCtx(ctx, "dropping payload for unknown task")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load task %s: %w", p.TaskID, err)
	}
	if task.State.IsTerminal() {
		logger.WarnCtx(ctx, "dropping payload for terminal task", "state", task.State)
		return nil
	}

	if task.LocalPath == "" {
		task.LocalPath = p.LocalPath
	}
	if task.LocalPath == "" {
		task.LocalPath = w.localPathFromVideo(ctx, task.VideoID)
	}
	if task.LocalPath == "" {
		_, err := w.failures.HandleFailure(ctx, task, p,
			pipeline.Permanent(errors.New("video local_path is missing")))
		return err
	}

	if err := w.markUploading(ctx, task); err != nil {
		return err
	}

	shareURL, err := w.injector.Process(ctx, task)
	if err != nil {
		_, ferr := w.failures.HandleFailure(ctx, task, p, err)
		return ferr
	}
	return w.persistSuccess(ctx, task, shareURL)
}

// localPathFromVideo hydrates the file location from the video row for
// payloads that predate account binding.
func (w *Worker) localPathFromVideo(ctx context.Context, videoID string) string {
	video, err := w.store.GetVideo(ctx, videoID)
	if err != nil {
		if !errors.Is(err, models.ErrVideoNotFound) {
			logger.WarnCtx(ctx, "failed to load video for local_path", "error", err)
		}
		return ""
	}
	return video.LocalPath
}

func (w *Worker) markUploading(ctx context.Context, task *models.Task) error {
	if err := w.store.UpdateTaskState(ctx, task.ID, models.TaskUploading, ""); err != nil {
		return fmt.Errorf("failed to mark task %s uploading: %w", task.ID, err)
	}
	if err := w.store.UpdateVideoStatus(ctx, task.VideoID, models.VideoUploading); err != nil {
		return fmt.Errorf("failed to mark video %s uploading: %w", task.VideoID, err)
	}
	return nil
}

// persistSuccess completes the task, publishes the share URL and books
// the uploaded bytes against the account quota. The completion write is
// conditional on the task still being in uploading: when orphan GC
// failed it mid-attempt the result is abandoned rather than silently
// resurrecting a failed task.
func (w *Worker) persistSuccess(ctx context.Context, task *models.Task, shareURL string) error {
	completed, err := w.store.UpdateTaskStateIf(ctx, task.ID, models.TaskUploading, models.TaskComplete, "")
	if err != nil {
		return fmt.Errorf("failed to complete task %s: %w", task.ID, err)
	}
	if !completed {
		logger.WarnCtx(ctx, "task no longer uploading, abandoning upload result",
			"share_url", shareURL)
		return nil
	}
	if err := w.store.SetVideoShareURL(ctx, task.VideoID, shareURL); err != nil {
		return fmt.Errorf("failed to set share url on video %s: %w", task.VideoID, err)
	}

	if task.AccountID != nil {
		if err := w.store.ApplyUploadUsage(ctx, *task.AccountID, w.uploadedBytes(ctx, task.LocalPath)); err != nil {
			logger.WarnCtx(ctx, "failed to apply upload usage",
				"account_id", *task.AccountID, "error", err)
		}
	}

	logger.InfoCtx(ctx, "task complete", "share_url", shareURL)
	return nil
}

// uploadedBytes sizes the uploaded artefact for quota accounting.
// Unknown sizes count as zero.
func (w *Worker) uploadedBytes(ctx context.Context, path string) int64 {
	if path == "" {
		return 0
	}
	size, err := w.media.Stat(ctx, path)
	if err != nil {
		logger.WarnCtx(ctx, "failed to stat uploaded file", "path", path, "error", err)
		return 0
	}
	return size
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
