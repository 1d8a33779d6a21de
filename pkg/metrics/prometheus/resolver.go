package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Charliesj0129/pixAV/pkg/metrics"
)

// resolverMetrics is the Prometheus implementation of
// metrics.ResolverMetrics.
type resolverMetrics struct {
	resolutionsTotal *prometheus.CounterVec
	fetchDuration    *prometheus.HistogramVec
	rateLimitedTotal prometheus.Counter
}

// NewResolverMetrics creates a new Prometheus-backed ResolverMetrics
// instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewResolverMetrics() metrics.ResolverMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &resolverMetrics{
		resolutionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pixav_resolver_resolutions_total",
				Help: "Total number of resolution attempts by source and status",
			},
			[]string{"source", "status"}, // source: "cache", "database", "local", "resolved", "none"
		),
		fetchDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "pixav_resolver_fetch_duration_seconds",
				Help: "Duration of upstream share-page fetches in seconds",
				Buckets: []float64{
					0.1,
					0.25,
					0.5,
					1,
					2.5,
					5,
					10,
					15, // fetch timeout default
				},
			},
			[]string{"status"},
		),
		rateLimitedTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "pixav_resolver_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
	}
}

func (m *resolverMetrics) RecordResolution(source string, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	if source == "" {
		source = "none"
	}

	m.resolutionsTotal.WithLabelValues(source, status).Inc()
}

func (m *resolverMetrics) ObserveFetch(duration time.Duration, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	m.fetchDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *resolverMetrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimitedTotal.Inc()
}
