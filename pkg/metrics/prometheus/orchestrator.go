package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Charliesj0129/pixAV/pkg/metrics"
)

// orchestratorMetrics is the Prometheus implementation of
// metrics.OrchestratorMetrics.
type orchestratorMetrics struct {
	ticksTotal      *prometheus.CounterVec
	tickDuration    prometheus.Histogram
	dispatchedTotal *prometheus.CounterVec
	skippedTotal    *prometheus.CounterVec
	orphansTotal    prometheus.Counter
	expiredTotal    prometheus.Counter
	queueDepth      *prometheus.GaugeVec
}

// NewOrchestratorMetrics creates a new Prometheus-backed
// OrchestratorMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewOrchestratorMetrics() metrics.OrchestratorMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &orchestratorMetrics{
		ticksTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pixav_orchestrator_ticks_total",
				Help: "Total number of orchestrator ticks by status",
			},
			[]string{"status"}, // "success", "error"
		),
		tickDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "pixav_orchestrator_tick_duration_seconds",
				Help: "Duration of orchestrator ticks in seconds",
				Buckets: []float64{
					0.01, // empty tick
					0.05,
					0.1,
					0.5,
					1, // full batch with account binding
					5,
					10, // store under load
				},
			},
		),
		dispatchedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pixav_orchestrator_dispatched_total",
				Help: "Total number of tasks promoted onto work queues",
			},
			[]string{"queue"},
		),
		skippedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pixav_orchestrator_skipped_pressure_total",
				Help: "Total number of promotions skipped on a critical queue depth",
			},
			[]string{"queue"},
		),
		orphansTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "pixav_orchestrator_orphans_cleaned_total",
				Help: "Total number of tasks failed by the orphan sweep",
			},
		),
		expiredTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "pixav_orchestrator_videos_expired_total",
				Help: "Total number of videos expired by the freshness sweep",
			},
		),
		queueDepth: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pixav_queue_depth",
				Help: "Last observed depth per work queue",
			},
			[]string{"queue"},
		),
	}
}

func (m *orchestratorMetrics) ObserveTick(duration time.Duration, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	m.ticksTotal.WithLabelValues(status).Inc()
	m.tickDuration.Observe(duration.Seconds())
}

func (m *orchestratorMetrics) RecordDispatched(queue string) {
	if m == nil {
		return
	}
	m.dispatchedTotal.WithLabelValues(queue).Inc()
}

func (m *orchestratorMetrics) RecordSkippedPressure(queue string) {
	if m == nil {
		return
	}
	m.skippedTotal.WithLabelValues(queue).Inc()
}

func (m *orchestratorMetrics) RecordOrphansCleaned(count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.orphansTotal.Add(float64(count))
}

func (m *orchestratorMetrics) RecordExpiredVideos(count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.expiredTotal.Add(float64(count))
}

func (m *orchestratorMetrics) SetQueueDepth(queue string, depth int64) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(queue).Set(float64(depth))
}
