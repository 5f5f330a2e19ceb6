package game

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	transitions *prometheus.CounterVec
	answers     *prometheus.CounterVec
	sideEffects *prometheus.CounterVec
	seenRatio   prometheus.Histogram
}

// NewMetrics registers the engine collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trivia",
			Subsystem: "game",
			Name:      "transitions_total",
			Help:      "Game session operations by outcome.",
		}, []string{"op", "outcome"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trivia",
			Subsystem: "game",
			Name:      "answers_total",
			Help:      "Accepted answer submissions by correctness.",
		}, []string{"correct"}),
		sideEffects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trivia",
			Subsystem: "game",
			Name:      "side_effect_failures_total",
			Help:      "Best-effort side effects that failed and were skipped.",
		}, []string{"kind"}),
		seenRatio: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "trivia",
			Subsystem: "game",
			Name:      "question_selection_seen_ratio",
			Help:      "Share of a pack already seen by the session's participants at start.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}
	reg.MustRegister(m.transitions, m.answers, m.sideEffects, m.seenRatio)
	return m
}

func (m *Metrics) observeOp(op string, err error) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(op, outcomeLabel(err)).Inc()
}

func (m *Metrics) answer(correct bool) {
	if m == nil {
		return
	}
	label := "false"
	if correct {
		label = "true"
	}
	m.answers.WithLabelValues(label).Inc()
}

func (m *Metrics) sideEffectFailed(kind string) {
	if m == nil {
		return
	}
	m.sideEffects.WithLabelValues(kind).Inc()
}

func (m *Metrics) observeSeenRatio(seen, total int) {
	if m == nil || total == 0 {
		return
	}
	m.seenRatio.Observe(float64(seen) / float64(total))
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}
