// Package metrics exposes Prometheus instrumentation for the upstream fetch path.
// This is part of the platform layer and contains no business logic.
package metrics

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes recorded by Recorder.ObserveFetch.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCacheHit  = "cache_hit"
	OutcomeCacheMiss = "cache_miss"
)

// Recorder owns a private registry so tests and multiple servers never clash
// on the global default registerer.
type Recorder struct {
	registry      *prom.Registry
	fetches       *prom.CounterVec
	fetchDuration prom.Histogram
	records       prom.Histogram
}

// New creates a Recorder with all collectors registered.
func New() *Recorder {
	registry := prom.NewRegistry()

	r := &Recorder{
		registry: registry,
		fetches: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "dpehub",
			Name:      "upstream_fetches_total",
			Help:      "Upstream DPE fetches by outcome.",
		}, []string{"outcome"}),
		fetchDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "dpehub",
			Name:      "upstream_fetch_seconds",
			Help:      "Latency of upstream DPE fetches.",
			Buckets:   prom.DefBuckets,
		}),
		records: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "dpehub",
			Name:      "upstream_records",
			Help:      "Records returned per upstream fetch.",
			Buckets:   []float64{0, 10, 50, 100, 250, 500, 1000},
		}),
	}

	registry.MustRegister(r.fetches, r.fetchDuration, r.records)
	return r
}

// ObserveFetch counts one fetch outcome.
func (r *Recorder) ObserveFetch(outcome string) {
	if r == nil {
		return
	}
	r.fetches.WithLabelValues(outcome).Inc()
}

// ObserveUpstream records latency and size of a completed upstream call.
func (r *Recorder) ObserveUpstream(seconds float64, records int) {
	if r == nil {
		return
	}
	r.fetchDuration.Observe(seconds)
	r.records.Observe(float64(records))
}

// Fetches exposes the outcome counter, mainly for tests.
func (r *Recorder) Fetches() *prom.CounterVec {
	return r.fetches
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prom.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
