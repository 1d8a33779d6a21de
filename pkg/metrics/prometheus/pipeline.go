package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Charliesj0129/pixAV/pkg/metrics"
)

// pipelineMetrics is the Prometheus implementation of metrics.PipelineMetrics.
type pipelineMetrics struct {
	tasksTotal   *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	retriesTotal *prometheus.CounterVec
	dlqTotal     *prometheus.CounterVec
	replaysTotal *prometheus.CounterVec
}

// NewPipelineMetrics creates a new Prometheus-backed PipelineMetrics
// instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewPipelineMetrics() metrics.PipelineMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &pipelineMetrics{
		tasksTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pixav_pipeline_tasks_total",
				Help: "Total number of handled payloads by stage and status",
			},
			[]string{"stage", "status"}, // status: "processed", "failed"
		),
		taskDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "pixav_pipeline_task_duration_seconds",
				Help: "Duration of payload handling by stage in seconds",
				Buckets: []float64{
					0.1,  // cheap skips and validation failures
					1,    // metadata-only work
					10,   // small transfers
					60,   // 1m
					300,  // 5m - typical downloads
					900,  // 15m - uploads including container boot
					1800, // 30m - worst case under the task timeout
				},
			},
			[]string{"stage"},
		),
		retriesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pixav_pipeline_retries_total",
				Help: "Total number of tasks re-pushed after a transient failure",
			},
			[]string{"stage"},
		),
		dlqTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pixav_pipeline_dead_letters_total",
				Help: "Total number of payloads dead-lettered by stage and error kind",
			},
			[]string{"stage", "error_kind"}, // error_kind: "transient", "permanent"
		),
		replaysTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pixav_pipeline_dlq_replays_total",
				Help: "Total number of dead-letter entries replayed onto the live queue",
			},
			[]string{"stage"},
		),
	}
}

func (m *pipelineMetrics) RecordTask(stage string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	status := "processed"
	if err != nil {
		status = "failed"
	}

	m.tasksTotal.WithLabelValues(stage, status).Inc()
	m.taskDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func (m *pipelineMetrics) RecordRetry(stage string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(stage).Inc()
}

func (m *pipelineMetrics) RecordDeadLetter(stage string, errorKind string) {
	if m == nil {
		return
	}
	m.dlqTotal.WithLabelValues(stage, errorKind).Inc()
}

func (m *pipelineMetrics) RecordReplay(stage string) {
	if m == nil {
		return
	}
	m.replaysTotal.WithLabelValues(stage).Inc()
}
