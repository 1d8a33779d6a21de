// Package ingest drains the discovery queue into pending pipeline tasks.
//
// Crawlers push {video_id, magnet_uri} payloads onto the crawl queue as
// they find new content. The ingester turns each payload into at most one
// pending task on the download queue. Unknown ids, unknown videos and
// videos that already carry an open task are skipped, so replaying a
// discovery payload never creates a second pipeline attempt for the same
// video.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Charliesj0129/pixAV/internal/logger"
	"github.com/Charliesj0129/pixAV/internal/telemetry"
	"github.com/Charliesj0129/pixAV/pkg/broker"
	"github.com/Charliesj0129/pixAV/pkg/models"
	"github.com/Charliesj0129/pixAV/pkg/store"
)

// popTimeout bounds each blocking pop; the first empty pop ends a batch.
const popTimeout = 1 * time.Second

// discoveryPayload is what crawlers push. Only the id is load-bearing;
// the magnet rides along for queue inspection.
type discoveryPayload struct {
	VideoID   string `json:"video_id"`
	MagnetURI string `json:"magnet_uri,omitempty"`
}

// Ingester converts discovery payloads into pending download tasks.
type Ingester struct {
	store             store.Store
	crawlQueue        *broker.Queue
	downloadQueueName string
	maxRetries        int
	batchSize         int
}

// New creates an ingester draining crawlQueue into tasks bound for
// downloadQueueName. maxRetries seeds each task's retry budget.
func New(st store.Store, crawlQueue *broker.Queue, downloadQueueName string, maxRetries, batchSize int) *Ingester {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Ingester{
		store:             st,
		crawlQueue:        crawlQueue,
		downloadQueueName: downloadQueueName,
		maxRetries:        maxRetries,
		batchSize:         batchSize,
	}
}

// IngestBatch drains up to batchSize payloads from the crawl queue and
// returns the number of tasks created. Malformed payloads and duplicate
// discoveries are dropped; a store failure aborts the batch after pushing
// the in-flight payload back so it is not lost.
func (i *Ingester) IngestBatch(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartIngestSpan(ctx, telemetry.QueueName(i.crawlQueue.Name()))
	defer span.End()

	created, err := i.ingestBatch(ctx)
	span.SetAttributes(attribute.Int("ingest.created", created))
	if err != nil {
		telemetry.RecordError(ctx, err)
	}
	return created, err
}

func (i *Ingester) ingestBatch(ctx context.Context) (int, error) {
	created := 0
	for n := 0; n < i.batchSize; n++ {
		raw, err := i.crawlQueue.Pop(ctx, popTimeout)
		if err != nil {
			return created, fmt.Errorf("failed to pop discovery payload: %w", err)
		}
		if raw == nil {
			break
		}

		var payload discoveryPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			logger.Warn("dropping malformed discovery payload", "queue", i.crawlQueue.Name(), "error", err)
			continue
		}
		if _, err := uuid.Parse(payload.VideoID); err != nil {
			logger.Warn("dropping discovery payload with invalid video id", "video_id", payload.VideoID)
			continue
		}

		video, err := i.store.GetVideo(ctx, payload.VideoID)
		if err != nil {
			if errors.Is(err, models.ErrVideoNotFound) {
				logger.Warn("dropping discovery payload for unknown video", "video_id", payload.VideoID)
				continue
			}
			i.requeue(ctx, raw)
			return created, fmt.Errorf("failed to load video %s: %w", payload.VideoID, err)
		}

		open, err := i.store.HasOpenTask(ctx, video.ID)
		if err != nil {
			i.requeue(ctx, raw)
			return created, fmt.Errorf("failed to check open tasks for %s: %w", video.ID, err)
		}
		if open {
			logger.Debug("video already has an open task", "video_id", video.ID)
			continue
		}

		taskID, err := i.store.CreateTask(ctx, &models.Task{
			VideoID:    video.ID,
			State:      models.TaskPending,
			QueueName:  i.downloadQueueName,
			MaxRetries: i.maxRetries,
		})
		if err != nil {
			i.requeue(ctx, raw)
			return created, fmt.Errorf("failed to create task for %s: %w", video.ID, err)
		}

		created++
		logger.Info("ingested discovery payload",
			"video_id", video.ID,
			"task_id", taskID,
			"queue", i.downloadQueueName)
	}
	return created, nil
}

// requeue returns a popped payload to the crawl queue so a transient store
// failure does not eat a discovery. Best effort; the crawler's next run
// rediscovers anything lost here.
func (i *Ingester) requeue(ctx context.Context, raw []byte) {
	if _, err := i.crawlQueue.PushRaw(ctx, raw); err != nil {
		logger.Warn("failed to requeue discovery payload", "queue", i.crawlQueue.Name(), "error", err)
	}
}
