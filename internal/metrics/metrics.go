// Package metrics defines the Prometheus collectors exported by the fsrs
// server at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sky-flux/fsrs"
	"github.com/sky-flux/fsrs/wire"
)

// Metrics holds every collector, registered on one registry.
type Metrics struct {
	Reviews         *prometheus.CounterVec
	ReviewErrors    *prometheus.CounterVec
	IntervalDays    prometheus.Histogram
	BatchSize       prometheus.Histogram
	RequestDuration *prometheus.HistogramVec
}

var _ wire.Observer = (*Metrics)(nil)

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Reviews: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsrs_reviews_total",
				Help: "Reviews scheduled, by rating and state transition",
			},
			[]string{"rating", "from", "to"},
		),
		ReviewErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsrs_review_errors_total",
				Help: "Rejected requests, by error code",
			},
			[]string{"code"},
		),
		IntervalDays: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fsrs_scheduled_interval_days",
			Help:    "Whole-day intervals assigned to cards entering Review",
			Buckets: []float64{1, 2, 4, 7, 14, 30, 60, 120, 365, 730, 3650, 36500},
		}),
		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fsrs_batch_size",
			Help:    "Reviews per batch request",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fsrs_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}

// ObserveReview records one scheduled review.
func (m *Metrics) ObserveReview(rating fsrs.Rating, from, to fsrs.State, scheduledDays int) {
	m.Reviews.WithLabelValues(rating.String(), from.String(), to.String()).Inc()
	if to == fsrs.Review && scheduledDays > 0 {
		m.IntervalDays.Observe(float64(scheduledDays))
	}
}

// ObserveError records one rejected request.
func (m *Metrics) ObserveError(code wire.Code) {
	m.ReviewErrors.WithLabelValues(string(code)).Inc()
}

// ObserveBatch records the size of one batch.
func (m *Metrics) ObserveBatch(n int) {
	m.BatchSize.Observe(float64(n))
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
