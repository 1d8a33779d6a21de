package orchestrator

import (
	"context"
	"fmt"

	"github.com/Charliesj0129/pixAV/internal/logger"
	"github.com/Charliesj0129/pixAV/pkg/broker"
	"github.com/Charliesj0129/pixAV/pkg/metrics"
)

// QueuePressure is the depth report for one monitored queue.
type QueuePressure struct {
	Depth    int64 `json:"depth"`
	OK       bool  `json:"ok"`
	Warn     bool  `json:"warn"`
	Critical bool  `json:"critical"`
}

// QueueMonitor watches work queue depths and gates dispatch.
//
// A queue at or above the critical threshold rejects dispatch; between
// warn and critical it accepts with a log line.
type QueueMonitor struct {
	queues   map[string]*broker.Queue
	warn     int64
	critical int64
	metrics  metrics.OrchestratorMetrics
}

// NewQueueMonitor creates a monitor over the given queues. m may be nil.
func NewQueueMonitor(queues map[string]*broker.Queue, cfg BackpressureConfig, m metrics.OrchestratorMetrics) *QueueMonitor {
	return &QueueMonitor{
		queues:   queues,
		warn:     cfg.WarnThreshold,
		critical: cfg.CriticalThreshold,
		metrics:  m,
	}
}

// Check reports whether the queue accepts more work. Unknown queues are
// assumed OK so a misconfigured name degrades to unlimited dispatch
// rather than a stalled pipeline.
func (m *QueueMonitor) Check(ctx context.Context, queueName string) (bool, error) {
	queue, known := m.queues[queueName]
	if !known {
		logger.Warn("unknown queue, assuming no pressure", "queue", queueName)
		return true, nil
	}

	depth, err := queue.Length(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read depth of %s: %w", queueName, err)
	}
	if m.metrics != nil {
		m.metrics.SetQueueDepth(queueName, depth)
	}

	if depth >= m.critical {
		logger.Warn("queue backpressured",
			"queue", queueName, "depth", depth, "critical", m.critical)
		return false, nil
	}
	if depth >= m.warn {
		logger.Info("queue depth elevated",
			"queue", queueName, "depth", depth, "warn", m.warn)
	}
	return true, nil
}

// AllPressures returns the pressure status of every monitored queue.
func (m *QueueMonitor) AllPressures(ctx context.Context) (map[string]QueuePressure, error) {
	result := make(map[string]QueuePressure, len(m.queues))
	for name, queue := range m.queues {
		depth, err := queue.Length(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read depth of %s: %w", name, err)
		}
		if m.metrics != nil {
			m.metrics.SetQueueDepth(name, depth)
		}
		result[name] = QueuePressure{
			Depth:    depth,
			OK:       depth < m.critical,
			Warn:     depth >= m.warn,
			Critical: depth >= m.critical,
		}
	}
	return result, nil
}
