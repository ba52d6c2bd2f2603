package metrics

import "github.com/prometheus/client_golang/prometheus"

// AgentMetrics exposes counters/histograms for the orchestration pipeline.
type AgentMetrics struct {
	decisionsTotal  *prometheus.CounterVec
	decisionRetries prometheus.Counter
	executionsTotal *prometheus.CounterVec
	turnLatency     *prometheus.HistogramVec
}

func NewAgentMetrics(reg prometheus.Registerer) *AgentMetrics {
	m := &AgentMetrics{
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assigny",
			Subsystem: "agent",
			Name:      "decisions_total",
			Help:      "Total routing decisions by kind and role",
		}, []string{"kind", "role"}),
		decisionRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assigny",
			Subsystem: "agent",
			Name:      "decision_retries_total",
			Help:      "Total decision retries due to malformed or ungrounded output",
		}),
		executionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assigny",
			Subsystem: "agent",
			Name:      "capability_executions_total",
			Help:      "Total capability executions by capability and outcome status",
		}, []string{"capability", "status"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "assigny",
			Subsystem: "agent",
			Name:      "turn_latency_seconds",
			Help:      "End-to-end latency of one conversation turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.decisionsTotal, m.decisionRetries, m.executionsTotal, m.turnLatency)
	return m
}

func (m *AgentMetrics) ObserveDecision(kind, role string) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(kind, role).Inc()
}

func (m *AgentMetrics) ObserveDecisionRetry() {
	if m == nil {
		return
	}
	m.decisionRetries.Inc()
}

func (m *AgentMetrics) ObserveExecution(capability, status string) {
	if m == nil {
		return
	}
	m.executionsTotal.WithLabelValues(capability, status).Inc()
}

func (m *AgentMetrics) ObserveTurnLatency(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.WithLabelValues(kind).Observe(seconds)
}
