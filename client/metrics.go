package client

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

var (
	requestDuration   = metrics.NewHistogram("driftbase_client_request_duration_seconds")
	transportFailures = metrics.NewCounter("driftbase_client_transport_failures_total")
	conflictsTotal    = metrics.NewCounter("driftbase_client_conflicts_total")
	batchesTotal      = metrics.NewCounter("driftbase_client_batches_total")
	pagesTotal        = metrics.NewCounter("driftbase_client_pages_total")
	cacheHits         = metrics.NewCounter("driftbase_client_cache_hits_total")
	cacheMisses       = metrics.NewCounter("driftbase_client_cache_misses_total")
)

func reqCounter(label string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`driftbase_client_requests_total{op=%q}`, label))
}

// WriteMetrics writes all client metrics in Prometheus text format.
func WriteMetrics(w io.Writer) {
	metrics.WritePrometheus(w, false)
}
