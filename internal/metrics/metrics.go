// Package metrics exposes Prometheus collectors for the roast service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	roastsTotal               *prometheus.CounterVec
	captureDurationSeconds    prometheus.Histogram
	generationDurationSeconds prometheus.Histogram
	rateLimitedTotal          prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		roastsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roast_requests_total",
				Help: "Total roast requests, labeled by outcome kind.",
			},
			[]string{"outcome"},
		)

		captureDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "roast_capture_duration_seconds",
				Help:    "Histogram of screenshot capture latencies.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
			},
		)

		generationDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "roast_generation_duration_seconds",
				Help:    "Histogram of critique generation latencies.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 60},
			},
		)

		rateLimitedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "roast_rate_limited_total",
				Help: "Total requests rejected by the rate limiter.",
			},
		)
	})
}

// ObserveRoast counts one finished roast request by outcome.
func ObserveRoast(outcome string) {
	if roastsTotal == nil {
		return
	}
	roastsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCapture records a capture duration.
func ObserveCapture(d time.Duration) {
	if captureDurationSeconds == nil {
		return
	}
	captureDurationSeconds.Observe(d.Seconds())
}

// ObserveGeneration records a generation duration.
func ObserveGeneration(d time.Duration) {
	if generationDurationSeconds == nil {
		return
	}
	generationDurationSeconds.Observe(d.Seconds())
}

// ObserveRateLimited counts one rejected admission.
func ObserveRateLimited() {
	if rateLimitedTotal == nil {
		return
	}
	rateLimitedTotal.Inc()
}

// Handler returns an http.Handler exposing the Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
