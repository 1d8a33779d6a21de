package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for pipeline operations.
// These follow OpenTelemetry semantic conventions where applicable.
// Pipeline-wide keys use their entity prefix (task., video., account.);
// component-specific keys use the component's prefix.
const (
	// ========================================================================
	// Task attributes
	// ========================================================================
	AttrTaskID         = "task.id"
	AttrTaskState      = "task.state"
	AttrTaskQueue      = "task.queue"
	AttrTaskRetries    = "task.retries"
	AttrTaskMaxRetries = "task.max_retries"

	// ========================================================================
	// Video attributes
	// ========================================================================
	AttrVideoID     = "video.id"
	AttrVideoStatus = "video.status"
	AttrInfoHash    = "video.info_hash"

	// ========================================================================
	// Account attributes
	// ========================================================================
	AttrAccountID = "account.id"

	// ========================================================================
	// Stage / queue attributes
	// ========================================================================
	AttrStage      = "pipeline.stage" // download, upload
	AttrStageMode  = "pipeline.mode"  // full, verify, redroid, local
	AttrErrorKind  = "pipeline.error_kind"
	AttrQueueName  = "queue.name"
	AttrQueueDepth = "queue.depth"

	// ========================================================================
	// Orchestrator tick attributes
	// ========================================================================
	AttrTickDispatched = "tick.dispatched"
	AttrTickSkipped    = "tick.skipped_pressure"
	AttrTickOrphans    = "tick.orphans_cleaned"
	AttrTickExpired    = "tick.expired_videos"
	AttrTickWaiting    = "tick.waiting_no_account"

	// ========================================================================
	// Resolver attributes
	// ========================================================================
	AttrCacheHit      = "cache.hit"
	AttrCacheKey      = "cache.key"
	AttrResolveSource = "resolve.source" // cache, database, local, resolved

	// ========================================================================
	// Media staging attributes
	// ========================================================================
	AttrMediaBackend = "media.backend" // fs, s3
	AttrMediaKey     = "media.key"
	AttrBucket       = "storage.bucket"
	AttrRegion       = "storage.region"
)

// Span names for operations.
// Format: <component>.<operation>.
const (
	SpanTick         = "orchestrator.tick"
	SpanIngestBatch  = "ingest.batch"
	SpanDownloadTask = "download.task"
	SpanUploadTask   = "upload.task"
	SpanDLQReplay    = "dlq.replay"
	SpanResolve      = "resolver.resolve"
	SpanFetchShare   = "resolver.fetch_share_page"
)

// TaskID returns an attribute for a task id
func TaskID(id string) attribute.KeyValue {
	return attribute.String(AttrTaskID, id)
}

// TaskState returns an attribute for a task lifecycle state
func TaskState(state string) attribute.KeyValue {
	return attribute.String(AttrTaskState, state)
}

// TaskQueue returns an attribute for the queue a task is routed to
func TaskQueue(queue string) attribute.KeyValue {
	return attribute.String(AttrTaskQueue, queue)
}

// TaskRetries returns an attribute for the task retry counter
func TaskRetries(retries int) attribute.KeyValue {
	return attribute.Int(AttrTaskRetries, retries)
}

// TaskMaxRetries returns an attribute for the task retry budget
func TaskMaxRetries(max int) attribute.KeyValue {
	return attribute.Int(AttrTaskMaxRetries, max)
}

// VideoID returns an attribute for a video id
func VideoID(id string) attribute.KeyValue {
	return attribute.String(AttrVideoID, id)
}

// VideoStatus returns an attribute for a video lifecycle status
func VideoStatus(status string) attribute.KeyValue {
	return attribute.String(AttrVideoStatus, status)
}

// InfoHash returns an attribute for a torrent info hash
func InfoHash(hash string) attribute.KeyValue {
	return attribute.String(AttrInfoHash, hash)
}

// AccountID returns an attribute for an upload account id
func AccountID(id string) attribute.KeyValue {
	return attribute.String(AttrAccountID, id)
}

// Stage returns an attribute for a pipeline stage name
func Stage(stage string) attribute.KeyValue {
	return attribute.String(AttrStage, stage)
}

// StageMode returns an attribute for a stage operating mode
func StageMode(mode string) attribute.KeyValue {
	return attribute.String(AttrStageMode, mode)
}

// ErrorKind returns an attribute for the failure classification
func ErrorKind(kind string) attribute.KeyValue {
	return attribute.String(AttrErrorKind, kind)
}

// QueueName returns an attribute for a work queue name
func QueueName(name string) attribute.KeyValue {
	return attribute.String(AttrQueueName, name)
}

// QueueDepth returns an attribute for a work queue depth
func QueueDepth(depth int64) attribute.KeyValue {
	return attribute.Int64(AttrQueueDepth, depth)
}

// CacheHit returns an attribute for cache hit indicator
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// CacheKey returns an attribute for a cache key
func CacheKey(key string) attribute.KeyValue {
	return attribute.String(AttrCacheKey, key)
}

// ResolveSource returns an attribute for where a resolution came from
func ResolveSource(source string) attribute.KeyValue {
	return attribute.String(AttrResolveSource, source)
}

// MediaBackend returns an attribute for the media staging backend
func MediaBackend(backend string) attribute.KeyValue {
	return attribute.String(AttrMediaBackend, backend)
}

// MediaKey returns an attribute for a media staging key
func MediaKey(key string) attribute.KeyValue {
	return attribute.String(AttrMediaKey, key)
}

// Bucket returns an attribute for an S3 bucket name
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// Region returns an attribute for a cloud region
func Region(region string) attribute.KeyValue {
	return attribute.String(AttrRegion, region)
}

// StartTaskSpan starts a span for one stage attempt on a task.
// The span is named <stage>.task and carries the task and video ids.
func StartTaskSpan(ctx context.Context, stage, taskID, videoID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Stage(stage),
		TaskID(taskID),
	}
	if videoID != "" {
		allAttrs = append(allAttrs, VideoID(videoID))
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, stage+".task", trace.WithAttributes(allAttrs...))
}

// StartTickSpan starts a span for one orchestrator scheduling cycle.
func StartTickSpan(ctx context.Context, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanTick, trace.WithAttributes(attrs...))
}

// StartResolveSpan starts a span for an on-demand URL resolution.
func StartResolveSpan(ctx context.Context, videoID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		VideoID(videoID),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanResolve, trace.WithAttributes(allAttrs...))
}

// StartIngestSpan starts a span for one discovery queue drain batch.
func StartIngestSpan(ctx context.Context, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanIngestBatch, trace.WithAttributes(attrs...))
}
