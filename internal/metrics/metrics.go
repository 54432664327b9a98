// Package metrics exposes attempt log activity as Prometheus metrics.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rpggio/attemptlog/internal/domain/attempt"
)

var _ attempt.Observer = (*Recorder)(nil)

// Recorder implements attempt.Observer on top of Prometheus collectors.
type Recorder struct {
	commands      *prometheus.CounterVec
	skippedEvents prometheus.Counter
	hydration     prometheus.Histogram
	hydrated      prometheus.Counter
}

// New creates a Recorder and registers its collectors with reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attempt_commands_total",
				Help: "Attempt commands by name and outcome",
			},
			[]string{"command", "result"},
		),
		skippedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attempt_remote_events_skipped_total",
			Help: "Remote events dropped because their attempt is not present locally",
		}),
		hydration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "attempt_hydration_duration_seconds",
			Help:    "Time spent hydrating the attempts of one study day",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		hydrated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attempt_hydrated_total",
			Help: "Attempts returned by hydration reads",
		}),
	}

	for _, c := range []prometheus.Collector{r.commands, r.skippedEvents, r.hydration, r.hydrated} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// CommandCompleted counts a command outcome.
func (r *Recorder) CommandCompleted(command string, err error) {
	r.commands.WithLabelValues(command, result(err)).Inc()
}

// RemoteEventsSkipped counts events dropped for a missing attempt.
func (r *Recorder) RemoteEventsSkipped(_ string, count int) {
	r.skippedEvents.Add(float64(count))
}

// HydrationObserved records the latency and size of one hydration.
func (r *Recorder) HydrationObserved(_ string, attempts int, elapsed time.Duration) {
	r.hydration.Observe(elapsed.Seconds())
	r.hydrated.Add(float64(attempts))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, attempt.ErrActiveAttemptExists):
		return "conflict"
	case errors.Is(err, attempt.ErrAttemptNotFound),
		errors.Is(err, attempt.ErrAttemptInactive),
		errors.Is(err, attempt.ErrUnknownEntity),
		errors.Is(err, attempt.ErrInvalidInput),
		errors.Is(err, attempt.ErrInconsistentDurations):
		return "rejected"
	default:
		return "error"
	}
}
