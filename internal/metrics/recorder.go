package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "policy_extractor"

// Recorder holds the pipeline's Prometheus collectors. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	registry    *prometheus.Registry
	extractions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	strategies  *prometheus.HistogramVec
	confidence  prometheus.Histogram
}

// NewRecorder registers collectors on a private registry so several
// recorders can coexist in one process (tests, embedded use).
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Completed extractions by text method and detected language.",
		}, []string{"method", "language"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_failures_total",
			Help:      "Extractions that were rejected or produced a default record.",
		}, []string{"reason"}),
		strategies: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "strategy_duration_seconds",
			Help:      "Time spent in each text acquisition strategy.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"strategy", "outcome"}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_confidence",
			Help:      "Distribution of extraction confidence scores.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}
	r.registry.MustRegister(r.extractions, r.failures, r.strategies, r.confidence)
	return r
}

// ObserveStrategy satisfies textextract.Observer.
func (r *Recorder) ObserveStrategy(strategy, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.strategies.WithLabelValues(strategy, outcome).Observe(d.Seconds())
}

func (r *Recorder) ObserveExtraction(method, language string, confidence float64) {
	if r == nil {
		return
	}
	r.extractions.WithLabelValues(method, language).Inc()
	r.confidence.Observe(confidence)
}

func (r *Recorder) ObserveFailure(reason string) {
	if r == nil {
		return
	}
	r.failures.WithLabelValues(reason).Inc()
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
