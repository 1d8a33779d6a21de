package metrics

import (
	"time"
)

// PipelineMetrics provides observability for stage worker pools.
//
// Implementations collect per-stage task throughput, duration and the
// failure funnel (retries, dead letters, replays). The interface is
// optional: pass nil to disable collection with zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	metrics.InitRegistry()
//	pm := prometheus.NewPipelineMetrics()
//	runner := pipeline.NewRunner(pipeline.RunnerConfig{..., Metrics: pm})
//
//	// Without metrics (pass nil for zero overhead)
//	runner := pipeline.NewRunner(pipeline.RunnerConfig{...})
type PipelineMetrics interface {
	// RecordTask records one completed handling attempt for a stage
	// with its duration and outcome. err nil means the payload was
	// processed; non-nil covers both retried and dead-lettered
	// attempts.
	RecordTask(stage string, duration time.Duration, err error)

	// RecordRetry records a task re-pushed to its live queue after a
	// transient failure.
	RecordRetry(stage string)

	// RecordDeadLetter records a payload moved to the stage's DLQ.
	// errorKind is the payload classification ("transient",
	// "permanent").
	RecordDeadLetter(stage string, errorKind string)

	// RecordReplay records a dead-letter entry pushed back onto the
	// live queue by the delayed replay sweep.
	RecordReplay(stage string)
}
