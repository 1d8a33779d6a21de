package metrics

import (
	"time"
)

// OrchestratorMetrics provides observability for the orchestrator tick
// loop. Pass nil to disable collection with zero overhead.
type OrchestratorMetrics interface {
	// ObserveTick records a completed tick with its duration and
	// outcome.
	ObserveTick(duration time.Duration, err error)

	// RecordDispatched records a task promoted onto a queue.
	RecordDispatched(queue string)

	// RecordSkippedPressure records a promotion skipped because the
	// target queue sat at or above the critical threshold.
	RecordSkippedPressure(queue string)

	// RecordOrphansCleaned adds to the count of tasks failed by the
	// orphan sweep.
	RecordOrphansCleaned(count int64)

	// RecordExpiredVideos adds to the count of videos expired by the
	// freshness sweep.
	RecordExpiredVideos(count int64)

	// SetQueueDepth updates the depth gauge for a queue. Sampled on
	// every backpressure check.
	SetQueueDepth(queue string, depth int64)
}
