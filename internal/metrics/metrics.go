// Package metrics counts draw attempts for export in the Prometheus text
// format. A CLI run has no scrape endpoint, so the registry is written to a
// file for the node exporter's textfile collector.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"secretsanta/internal/draw"
)

// Recorder owns a private registry so tests and repeated runs never collide
// with the global one.
type Recorder struct {
	registry *prometheus.Registry

	attempts      prometheus.Counter
	successes     prometheus.Counter
	stalls        *prometheus.CounterVec
	verifyFailure prometheus.Counter
	duration      prometheus.Histogram
}

// New registers the draw metrics on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secretsanta_attempts_total",
			Help: "Draw attempts finished.",
		}),
		successes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secretsanta_successes_total",
			Help: "Draw attempts that produced a verified assignment.",
		}),
		stalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secretsanta_stalls_total",
			Help: "Attempts abandoned because a participant had no eligible recipient.",
		}, []string{"kind"}),
		verifyFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secretsanta_verification_failures_total",
			Help: "Finished attempts rejected by verification.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "secretsanta_attempt_duration_seconds",
			Help:    "Wall time of a single attempt.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}
	r.registry.MustRegister(r.attempts, r.successes, r.stalls, r.verifyFailure, r.duration)
	return r
}

// Observe records one attempt. It has the signature of draw.Solver.OnAttempt.
func (r *Recorder) Observe(o draw.Outcome) {
	r.attempts.Inc()
	r.duration.Observe(o.Duration.Seconds())

	var stall *draw.StallError
	switch {
	case o.OK():
		r.successes.Inc()
	case errors.As(o.Err, &stall):
		r.stalls.WithLabelValues(stall.Kind.String()).Inc()
	case errors.Is(o.Err, draw.ErrVerification):
		r.verifyFailure.Inc()
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// WriteTextfile writes every metric to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
