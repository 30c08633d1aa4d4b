package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics exposes counters/histograms for chat turns.
type ChatMetrics struct {
	turnsTotal   *prometheus.CounterVec
	llmTotal     *prometheus.CounterVec
	llmLatency   *prometheus.HistogramVec
	dataFailures *prometheus.CounterVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cartoncaps",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total chat turns by detected intent",
		}, []string{"intent"}),
		llmTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cartoncaps",
			Subsystem: "chat",
			Name:      "llm_requests_total",
			Help:      "Total model calls by provider and outcome",
		}, []string{"provider", "outcome"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cartoncaps",
			Subsystem: "chat",
			Name:      "llm_latency_seconds",
			Help:      "Latency of model calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"provider"}),
		dataFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cartoncaps",
			Subsystem: "chat",
			Name:      "data_failures_total",
			Help:      "Degraded data-access or document operations",
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.llmTotal, m.llmLatency, m.dataFailures)
	return m
}

func (m *ChatMetrics) ObserveTurn(intent string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(intent).Inc()
}

// ObserveLLM records one model call. outcome is one of ok, empty, error,
// disabled.
func (m *ChatMetrics) ObserveLLM(provider, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.llmTotal.WithLabelValues(provider, outcome).Inc()
	if outcome != "disabled" {
		m.llmLatency.WithLabelValues(provider).Observe(seconds)
	}
}

func (m *ChatMetrics) ObserveDataFailure(operation string) {
	if m == nil {
		return
	}
	m.dataFailures.WithLabelValues(operation).Inc()
}
