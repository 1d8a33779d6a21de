package metrics

import (
	"time"
)

// ResolverMetrics provides observability for the URL resolver. Pass nil
// to disable collection with zero overhead.
type ResolverMetrics interface {
	// RecordResolution records one resolution attempt. source is where
	// the URL came from ("cache", "database", "local", "resolved");
	// empty on failure.
	RecordResolution(source string, err error)

	// ObserveFetch records an upstream share-page fetch with its
	// duration and outcome.
	ObserveFetch(duration time.Duration, err error)

	// RecordRateLimited records a request rejected by the rate
	// limiter.
	RecordRateLimited()
}
