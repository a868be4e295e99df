package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the dispatcher.
type Metrics struct {
	DispatchTotal      *prometheus.CounterVec
	DispatchDurationMs *prometheus.HistogramVec
	AgentPasses        *prometheus.HistogramVec
	SelectionTotal     *prometheus.CounterVec
	AgentRetriesTotal  *prometheus.CounterVec
	CircuitState       *prometheus.GaugeVec
	RateLimitHitsTotal *prometheus.CounterVec
	ConfigReloadsTotal *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg. A nil reg uses
// the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		DispatchTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_dispatch_total",
			Help: "Total number of dispatches by outcome.",
		}, []string{"model", "mode", "status"}),

		DispatchDurationMs: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aegis_dispatch_duration_ms",
			Help:    "Dispatch duration in milliseconds (including agent latency).",
			Buckets: []float64{5, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"model", "mode"}),

		AgentPasses: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aegis_dispatch_agent_passes",
			Help:    "Agent calls made by a mode strategy per dispatch.",
			Buckets: []float64{1, 2, 3, 5, 8},
		}, []string{"mode"}),

		SelectionTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_selection_total",
			Help: "Models chosen by the selector, by task context.",
		}, []string{"model", "complexity", "type", "urgency"}),

		AgentRetriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_agent_retries_total",
			Help: "Agent calls retried after a failure.",
		}, []string{"model"}),

		CircuitState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aegis_circuit_state",
			Help: "Per-model circuit breaker state (0=closed, 1=open, 2=half_open).",
		}, []string{"model"}),

		RateLimitHitsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_ratelimit_hits_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"dimension"}),

		ConfigReloadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_config_reloads_total",
			Help: "Configuration reloads by result.",
		}, []string{"result"}),
	}
}

// RecordDispatch records metrics for a completed dispatch.
func (m *Metrics) RecordDispatch(labels DispatchLabels) {
	m.DispatchTotal.WithLabelValues(labels.Model, labels.Mode, labels.Status).Inc()
	m.DispatchDurationMs.WithLabelValues(labels.Model, labels.Mode).Observe(labels.DurationMs)
	if labels.Passes > 0 {
		m.AgentPasses.WithLabelValues(labels.Mode).Observe(float64(labels.Passes))
	}
}

// RecordSelection counts a selector decision.
func (m *Metrics) RecordSelection(model, complexity, taskType, urgency string) {
	m.SelectionTotal.WithLabelValues(model, complexity, taskType, urgency).Inc()
}

// RecordRetry counts one retried agent call.
func (m *Metrics) RecordRetry(model string) {
	m.AgentRetriesTotal.WithLabelValues(model).Inc()
}

// SetCircuitState publishes a breaker state.
func (m *Metrics) SetCircuitState(model string, state int) {
	m.CircuitState.WithLabelValues(model).Set(float64(state))
}

// RecordRateLimitHit counts a rejected request.
func (m *Metrics) RecordRateLimitHit(dimension string) {
	m.RateLimitHitsTotal.WithLabelValues(dimension).Inc()
}

// RecordConfigReload counts a reload attempt; result is "success" or "failure".
func (m *Metrics) RecordConfigReload(result string) {
	m.ConfigReloadsTotal.WithLabelValues(result).Inc()
}

// DispatchLabels holds the label values for recording a dispatch.
type DispatchLabels struct {
	Model      string
	Mode       string
	Status     string
	DurationMs float64
	Passes     int
}
