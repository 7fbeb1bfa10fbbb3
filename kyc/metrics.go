package kyc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records verification outcomes and provider call behaviour.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Outcomes     *prometheus.CounterVec
	CallLatency  *prometheus.HistogramVec
	Retries      *prometheus.CounterVec
	Confidence   prometheus.Histogram
	PendingPolls *prometheus.CounterVec
}

// NewMetrics registers the engine metrics with reg. Passing nil uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idverify_verification_outcomes_total",
			Help: "Total verification outcomes by provider, document type and status",
		}, []string{"provider", "document_type", "status"}),

		CallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idverify_provider_call_duration_seconds",
			Help:    "Duration of individual provider calls by operation",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"provider", "op"}),

		Retries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idverify_provider_retries_total",
			Help: "Provider calls retried after a transient failure, by error kind",
		}, []string{"provider", "kind"}),

		Confidence: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "idverify_name_match_confidence",
			Help:    "Distribution of name match confidence scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 95, 100},
		}),

		PendingPolls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idverify_status_polls_total",
			Help: "Status checks of pending references by provider and resulting status",
		}, []string{"provider", "status"}),
	}
}

func (m *Metrics) IncrementOutcome(provider, documentType, status string) {
	if m != nil {
		m.Outcomes.WithLabelValues(provider, documentType, status).Inc()
	}
}

func (m *Metrics) ObserveCallLatency(provider, op string, d time.Duration) {
	if m != nil {
		m.CallLatency.WithLabelValues(provider, op).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementRetry(provider, kind string) {
	if m != nil {
		m.Retries.WithLabelValues(provider, kind).Inc()
	}
}

func (m *Metrics) ObserveConfidence(confidence int) {
	if m != nil {
		m.Confidence.Observe(float64(confidence))
	}
}

func (m *Metrics) IncrementPoll(provider, status string) {
	if m != nil {
		m.PendingPolls.WithLabelValues(provider, status).Inc()
	}
}
