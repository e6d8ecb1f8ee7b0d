package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics covers the turn pipeline from classification through
// synthesis. Labels use the terminal state and the classified domain,
// never free text.
type PipelineMetrics struct {
	turnsTotal          *prometheus.CounterVec
	turnDuration        *prometheus.HistogramVec
	retrievedPassages   *prometheus.HistogramVec
	verifiedPassages    *prometheus.HistogramVec
	clarificationsTotal *prometheus.CounterVec
	answersByConfidence *prometheus.CounterVec
}

func newPipelineMetrics(registry *prometheus.Registry) *PipelineMetrics {
	turnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tahlilchi",
			Subsystem: "pipeline",
			Name:      "turns_total",
			Help:      "Total completed turns by terminal state and intent.",
		},
		[]string{"service", "state", "intent"},
	)
	turnDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tahlilchi",
			Subsystem: "pipeline",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn duration in seconds by terminal state.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"service", "state"},
	)
	retrievedPassages := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tahlilchi",
			Subsystem: "pipeline",
			Name:      "retrieved_passages",
			Help:      "Distribution of fused candidates per answered turn.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service"},
	)
	verifiedPassages := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tahlilchi",
			Subsystem: "pipeline",
			Name:      "verified_passages",
			Help:      "Distribution of passages surviving verification per answered turn.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		},
		[]string{"service"},
	)
	clarificationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tahlilchi",
			Subsystem: "pipeline",
			Name:      "clarifications_total",
			Help:      "Total clarification turns by law domain.",
		},
		[]string{"service", "domain"},
	)
	answersByConfidence := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tahlilchi",
			Subsystem: "pipeline",
			Name:      "answers_total",
			Help:      "Total synthesized answers by confidence tier.",
		},
		[]string{"service", "confidence"},
	)

	registry.MustRegister(
		turnsTotal,
		turnDuration,
		retrievedPassages,
		verifiedPassages,
		clarificationsTotal,
		answersByConfidence,
	)

	return &PipelineMetrics{
		turnsTotal:          turnsTotal,
		turnDuration:        turnDuration,
		retrievedPassages:   retrievedPassages,
		verifiedPassages:    verifiedPassages,
		clarificationsTotal: clarificationsTotal,
		answersByConfidence: answersByConfidence,
	}
}

func (m *PipelineMetrics) RecordTurn(service, state, intent string, duration time.Duration) {
	if state == "" {
		state = "unknown"
	}
	if intent == "" {
		intent = "unknown"
	}
	m.turnsTotal.WithLabelValues(service, state, intent).Inc()
	m.turnDuration.WithLabelValues(service, state).Observe(duration.Seconds())
}

func (m *PipelineMetrics) RecordAnswerCounts(service string, retrieved, verified int) {
	m.retrievedPassages.WithLabelValues(service).Observe(float64(retrieved))
	m.verifiedPassages.WithLabelValues(service).Observe(float64(verified))
}

func (m *PipelineMetrics) RecordClarification(service, domain string) {
	if domain == "" {
		domain = "unknown"
	}
	m.clarificationsTotal.WithLabelValues(service, domain).Inc()
}

func (m *PipelineMetrics) RecordAnswerConfidence(service, confidence string) {
	if confidence == "" {
		confidence = "unknown"
	}
	m.answersByConfidence.WithLabelValues(service, confidence).Inc()
}
