package download

import (
	"context"
	"errors"
	"time"

	"github.com/Charliesj0129/pixAV/internal/logger"
	"github.com/Charliesj0129/pixAV/pkg/broker"
	"github.com/Charliesj0129/pixAV/pkg/metrics"
	"github.com/Charliesj0129/pixAV/pkg/models"
	"github.com/Charliesj0129/pixAV/pkg/pipeline"
	"github.com/Charliesj0129/pixAV/pkg/store"
)

// Worker consumes the download queue with a pool of service workers.
type Worker struct {
	runner  *pipeline.Runner
	service *Service
	store   store.Store
	qbit    *QBitClient
}

// NewWorker wires the download stage: queue consumption, the torrent
// client, remuxer, optional metadata scraper and the shared failure
// policy. m may be nil to disable metrics.
func NewWorker(cfg Config, st store.Store, client *broker.Client, queues broker.QueuesConfig, m metrics.PipelineMetrics) *Worker {
	queue := broker.NewQueue(client, queues.Download)
	dlq := broker.NewQueue(client, broker.DLQName(queues.Download))

	failures := pipeline.NewFailureHandler(st, pipeline.FailureConfig{
		Stage:             pipeline.StageDownload,
		Queue:             queue,
		DLQ:               dlq,
		RetryVideoStatus:  models.VideoDiscovered,
		DefaultMaxRetries: cfg.MaxRetries,
		Metrics:           m,
	})

	qbit := NewQBitClient(cfg.Torrent, cfg.Dir)

	var scraper MetadataScraper
	if cfg.Stash.URL != "" {
		scraper = NewStashScraper(cfg.Stash)
	}

	service := NewService(ServiceConfig{
		Client:          qbit,
		Remuxer:         NewFFmpegRemuxer("", 0),
		Scraper:         scraper,
		Store:           st,
		Failures:        failures,
		UploadQueueName: queues.Upload,
		OutputDir:       cfg.Dir,
		Mode:            cfg.Mode,
		Timeout:         cfg.Timeout,
	})

	w := &Worker{
		service: service,
		store:   st,
		qbit:    qbit,
	}
	w.runner = pipeline.NewRunner(pipeline.RunnerConfig{
		Name:    "download",
		Queue:   queue,
		Workers: cfg.Workers,
		Handle:  w.handle,
		Metrics: m,
	})
	return w
}

// handle processes one raw queue payload.
func (w *Worker) handle(ctx context.Context, raw []byte) error {
	p, err := pipeline.ParsePayload(raw)
	if err != nil {
		return err
	}

	task, err := w.store.GetTask(ctx, p.TaskID)
	if errors.Is(err, models.ErrTaskNotFound) {
		logger.Warn("dropping payload for unknown task", "task_id", p.TaskID)
		return nil
	}
	if err != nil {
		return err
	}
	if task.State.IsTerminal() {
		logger.Warn("dropping payload for finished task",
			"task_id", task.ID, "state", task.State)
		return nil
	}

	return w.service.Process(ctx, task, p)
}

// Healthcheck verifies the torrent client is reachable.
func (w *Worker) Healthcheck(ctx context.Context) error {
	version, err := w.qbit.Healthcheck(ctx)
	if err != nil {
		return err
	}
	logger.Info("qbittorrent health check ok", "version", version)
	return nil
}

// Start begins consuming the download queue.
func (w *Worker) Start(ctx context.Context) {
	w.runner.Start(ctx)
}

// Stop shuts the worker pool down.
func (w *Worker) Stop(timeout time.Duration) {
	w.runner.Stop(timeout)
}

// Stats returns processed and failed payload counts.
func (w *Worker) Stats() (processed, failed int) {
	return w.runner.Stats()
}
