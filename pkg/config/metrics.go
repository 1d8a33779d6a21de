package config

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Charliesj0129/pixAV/pkg/metrics"
	metricsprom "github.com/Charliesj0129/pixAV/pkg/metrics/prometheus"
)

// MetricsResult bundles everything InitializeMetrics produced. When
// metrics are disabled every field is nil and components fall back to
// their zero-overhead no-op path.
type MetricsResult struct {
	// Server is the HTTP server exposing /metrics, nil when disabled.
	// The caller owns its lifecycle.
	Server *http.Server

	// Orchestrator records tick outcomes and queue depths.
	Orchestrator metrics.OrchestratorMetrics

	// Pipeline records per-stage task outcomes, retries and dead letters.
	Pipeline metrics.PipelineMetrics

	// Resolver records resolution sources and share page fetches.
	Resolver metrics.ResolverMetrics
}

// InitializeMetrics sets up the Prometheus registry and collectors when
// metrics are enabled. Call it before creating workers so every
// component sees an initialized registry.
func InitializeMetrics(cfg *Config) MetricsResult {
	if cfg == nil || !cfg.Metrics.Enabled {
		return MetricsResult{}
	}

	metrics.InitRegistry()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	return MetricsResult{
		Server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		Orchestrator: metricsprom.NewOrchestratorMetrics(),
		Pipeline:     metricsprom.NewPipelineMetrics(),
		Resolver:     metricsprom.NewResolverMetrics(),
	}
}
