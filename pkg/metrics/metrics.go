// Package metrics reports the outcome of a run to a Prometheus pushgateway.
//
// The sink is an explicit value constructed by the top-level caller and
// handed to the run orchestrator; there is no ambient global registry.
// Pushing is best-effort: a scheduler-driven backup must never fail because
// the monitoring stack is down.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"pixelgardenlabs.io/borgman/pkg/plog"
)

// job is the pushgateway job label under which run outcomes are grouped.
const job = "borgman"

// Sink records the outcome of one complete run.
type Sink interface {
	RecordOutcome(succeeded bool, finishedAt time.Time, duration time.Duration)
}

// PushSink pushes run outcomes to a Prometheus pushgateway.
type PushSink struct {
	addr string
}

// NewPushSink creates a sink pushing to the given pushgateway address.
func NewPushSink(addr string) *PushSink {
	return &PushSink{addr: addr}
}

// RecordOutcome pushes a success gauge, a completion timestamp gauge and a
// duration histogram. Push failures are logged and swallowed.
func (s *PushSink) RecordOutcome(succeeded bool, finishedAt time.Time, duration time.Duration) {
	registry := prometheus.NewRegistry()

	success := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "borgman_last_run_success",
		Help: "Whether the last borgman run succeeded (1) or failed (0).",
	})
	timestamp := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "borgman_last_run_timestamp_seconds",
		Help: "Unix timestamp of the last completed borgman run.",
	})
	durationHist := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "borgman_run_duration_seconds",
		Help:    "Wall-clock duration of borgman runs.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})
	registry.MustRegister(success, timestamp, durationHist)

	if succeeded {
		success.Set(1)
	} else {
		success.Set(0)
	}
	timestamp.Set(float64(finishedAt.Unix()))
	durationHist.Observe(duration.Seconds())

	if err := push.New(s.addr, job).Gatherer(registry).Push(); err != nil {
		plog.Warn("Could not push run metrics", "addr", s.addr, "error", err)
		return
	}
	plog.Info("Pushed run metrics", "addr", s.addr, "succeeded", succeeded)
}

// NoopSink discards outcomes. Used when no pushgateway is configured.
type NoopSink struct{}

func (NoopSink) RecordOutcome(succeeded bool, finishedAt time.Time, duration time.Duration) {}

var _ Sink = (*PushSink)(nil)
var _ Sink = NoopSink{}
