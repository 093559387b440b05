// Package metrics provides Prometheus metrics for the decoration core.
//
// Metrics are optional: New returns a no-op Recorder when no registry is
// given, so components can always record without nil checks.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Computation outcomes used as label values.
const (
	OutcomeCompleted = "completed"
	OutcomeTimedOut  = "timed_out"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Invalidation scopes used as label values.
const (
	ScopeOne = "one"
	ScopeAll = "all"
)

// Recorder receives events from the cache and the coordinator.
type Recorder interface {
	// CacheLookup records a cache lookup.
	CacheLookup(hit bool)
	// CacheInvalidated records removed cache entries.
	CacheInvalidated(scope string, removed int)
	// ComputationStarted records a launched computation.
	ComputationStarted()
	// ComputationSettled records how a computation ended and how long it ran.
	ComputationSettled(outcome string, elapsed time.Duration)
}

type promRecorder struct {
	lookups       *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	started       prometheus.Counter
	inFlight      prometheus.Gauge
	settled       *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

// New creates a Prometheus-backed Recorder registered on reg.
//
// Returns a no-op Recorder if reg is nil.
func New(reg prometheus.Registerer) Recorder {
	if reg == nil {
		return Noop()
	}

	return &promRecorder{
		lookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dirhover_cache_lookups_total",
				Help: "Total number of decoration cache lookups by result",
			},
			[]string{"result"},
		),
		invalidations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dirhover_cache_invalidated_entries_total",
				Help: "Total number of cache entries removed by invalidation",
			},
			[]string{"scope"},
		),
		started: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dirhover_computations_started_total",
				Help: "Total number of directory computations launched",
			},
		),
		inFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dirhover_computations_in_flight",
				Help: "Current number of running directory computations",
			},
		),
		settled: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dirhover_computations_settled_total",
				Help: "Total number of directory computations by outcome",
			},
			[]string{"outcome"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dirhover_computation_duration_seconds",
				Help: "Duration of directory computations in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.01,  // 10ms
					0.1,   // 100ms
					0.5,   // 500ms
					1,     // 1s
					5,     // 5s
					30,    // 30s
				},
			},
			[]string{"outcome"},
		),
	}
}

func (r *promRecorder) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}

	r.lookups.WithLabelValues(result).Inc()
}

func (r *promRecorder) CacheInvalidated(scope string, removed int) {
	r.invalidations.WithLabelValues(scope).Add(float64(removed))
}

func (r *promRecorder) ComputationStarted() {
	r.started.Inc()
	r.inFlight.Inc()
}

func (r *promRecorder) ComputationSettled(outcome string, elapsed time.Duration) {
	r.inFlight.Dec()
	r.settled.WithLabelValues(outcome).Inc()
	r.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

type noopRecorder struct{}

// Noop returns a Recorder that discards everything.
func Noop() Recorder {
	return noopRecorder{}
}

func (noopRecorder) CacheLookup(bool)                         {}
func (noopRecorder) CacheInvalidated(string, int)             {}
func (noopRecorder) ComputationStarted()                      {}
func (noopRecorder) ComputationSettled(string, time.Duration) {}

// Handler exposes the metrics gathered by g over HTTP.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
