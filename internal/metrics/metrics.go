package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "meter_verification"

// Metrics exposes verification instruments
type Metrics struct {
	outcomes     *prometheus.CounterVec
	degradations *prometheus.CounterVec
	fraudScore   prometheus.Histogram
	ocrEngine    *prometheus.CounterVec
}

// New registers the verification instruments with reg
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Verification requests by outcome kind and status.",
		}, []string{"kind", "status"}),
		degradations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degradations_total",
			Help:      "Best-effort steps that fell back instead of failing the request.",
		}, []string{"step"}),
		fraudScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fraud_score",
			Help:      "Distribution of fraud scores.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),
		ocrEngine: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ocr_source_total",
			Help:      "Readings by the engine that produced them.",
		}, []string{"engine"}),
	}

	for _, c := range []prometheus.Collector{m.outcomes, m.degradations, m.fraudScore, m.ocrEngine} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordOutcome counts a finished verification
func (m *Metrics) RecordOutcome(kind, status string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(kind, status).Inc()
}

// RecordDegradation counts a best-effort step that fell back
func (m *Metrics) RecordDegradation(step string) {
	if m == nil {
		return
	}
	m.degradations.WithLabelValues(step).Inc()
}

// ObserveFraudScore records a fraud score
func (m *Metrics) ObserveFraudScore(score float64) {
	if m == nil {
		return
	}
	m.fraudScore.Observe(score)
}

// RecordOCRSource counts which engine produced a reading
func (m *Metrics) RecordOCRSource(engine string) {
	if m == nil {
		return
	}
	m.ocrEngine.WithLabelValues(engine).Inc()
}
