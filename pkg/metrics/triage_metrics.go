// Package metrics holds the Prometheus instruments of the triage pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Flow labels
const (
	FlowMailbox = "mailbox"
	FlowBatch   = "batch"
)

// Poll cycle results
const (
	PollEmpty     = "empty"
	PollProcessed = "processed"
	PollReplayed  = "replayed"
	PollError     = "error"
)

// TriageMetrics holds all Prometheus metrics for the triage pipeline.
// A nil *TriageMetrics is valid and records nothing.
type TriageMetrics struct {
	TicketsClassifiedTotal    *prometheus.CounterVec
	ClassificationErrorsTotal *prometheus.CounterVec
	ClassificationSeconds     *prometheus.HistogramVec
	DispatchErrorsTotal       *prometheus.CounterVec
	PollCyclesTotal           *prometheus.CounterVec
	BatchesTotal              *prometheus.CounterVec
}

// NewTriageMetrics registers the triage metrics with reg.
func NewTriageMetrics(reg prometheus.Registerer) *TriageMetrics {
	factory := promauto.With(reg)

	return &TriageMetrics{
		TicketsClassifiedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_tickets_classified_total",
				Help: "Tickets classified, by flow and category",
			},
			[]string{"flow", "category"},
		),
		ClassificationErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_classification_errors_total",
				Help: "Model calls that failed or returned no usable text",
			},
			[]string{"flow"},
		),
		ClassificationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "triage_classification_seconds",
				Help:    "Latency of a single model call",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"flow"},
		),
		DispatchErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_dispatch_errors_total",
				Help: "Failed mailbox side effects, by operation",
			},
			[]string{"op"},
		),
		PollCyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_poll_cycles_total",
				Help: "Mailbox poll cycles, by result",
			},
			[]string{"result"},
		),
		BatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_batches_total",
				Help: "Batch runs, by report delivery outcome",
			},
			[]string{"delivered"},
		),
	}
}

// ObserveClassification records one classification attempt.
func (m *TriageMetrics) ObserveClassification(flow, category string, elapsed time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.ClassificationSeconds.WithLabelValues(flow).Observe(elapsed.Seconds())
	if failed {
		m.ClassificationErrorsTotal.WithLabelValues(flow).Inc()
	}
	m.TicketsClassifiedTotal.WithLabelValues(flow, category).Inc()
}

// ObserveDispatchError records a failed mailbox operation.
func (m *TriageMetrics) ObserveDispatchError(op string) {
	if m == nil {
		return
	}
	m.DispatchErrorsTotal.WithLabelValues(op).Inc()
}

// ObservePoll records the result of one poll cycle.
func (m *TriageMetrics) ObservePoll(result string) {
	if m == nil {
		return
	}
	m.PollCyclesTotal.WithLabelValues(result).Inc()
}

// ObserveBatch records a finished batch run.
func (m *TriageMetrics) ObserveBatch(delivered bool) {
	if m == nil {
		return
	}
	label := "false"
	if delivered {
		label = "true"
	}
	m.BatchesTotal.WithLabelValues(label).Inc()
}
