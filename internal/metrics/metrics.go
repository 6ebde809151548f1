// Package metrics holds the Prometheus collectors for the HTTP surface and
// the excuse generation pipeline.
//
// Collectors are built against an explicit prometheus.Registerer so tests
// can use a fresh registry and read values back with testutil.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "excuse"

// Pipeline counts what happens to generation requests after validation.
type Pipeline struct {
	Generated           *prometheus.CounterVec // by plan
	QuotaDenials        prometheus.Counter
	GenerationFailures  prometheus.Counter
	LedgerWriteFailures prometheus.Counter
	GenerationDuration  prometheus.Histogram
}

// NewPipeline registers the pipeline collectors with reg.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	f := promauto.With(reg)
	return &Pipeline{
		Generated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generated_total",
			Help:      "Excuses successfully generated",
		}, []string{"plan"}),
		QuotaDenials: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_denials_total",
			Help:      "Requests denied by the free daily limit",
		}),
		GenerationFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_failures_total",
			Help:      "Failed calls to the text-generation provider",
		}),
		LedgerWriteFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_write_failures_total",
			Help:      "Usage writes that failed after a successful generation",
		}),
		GenerationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Duration of text-generation calls",
			Buckets:   []float64{.25, .5, 1, 2, 4, 8, 15, 30},
		}),
	}
}

// HTTP holds request-level collectors, labelled by chi route pattern.
type HTTP struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewHTTP registers the HTTP collectors with reg.
func NewHTTP(reg prometheus.Registerer) *HTTP {
	f := promauto.With(reg)
	return &HTTP{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "path", "status"}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		}),
	}
}
