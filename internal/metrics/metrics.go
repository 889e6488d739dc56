// Package metrics provides Prometheus metrics collection for the
// orchestration core: labeled CounterVec/HistogramVec/GaugeVec collectors
// registered once at construction, covering the core's own domain
// surface — rate-governor admissions, transaction-engine executions,
// agent executions, and realized profit.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector the core registers.
type Metrics struct {
	RateLimitDecisionsTotal *prometheus.CounterVec
	RateLimitCooldownActive *prometheus.GaugeVec

	TransactionsTotal    *prometheus.CounterVec
	TransactionDuration  *prometheus.HistogramVec
	TransactionsInFlight prometheus.Gauge

	AgentExecutionsTotal *prometheus.CounterVec
	AgentSuccessesTotal  *prometheus.CounterVec

	RealizedProfitTotal prometheus.Gauge
	PopulationSize      prometheus.Gauge

	ServiceInfo *prometheus.GaugeVec
}

// New creates a Metrics instance registered against the default registerer.
func New(serviceName, version string) *Metrics {
	return NewWithRegistry(serviceName, version, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against registerer,
// which may be nil to skip registration (useful in tests that construct
// multiple instances in one process).
func NewWithRegistry(serviceName, version string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RateLimitDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flashcore_rate_limit_decisions_total",
				Help: "Total number of RateGovernor admission decisions",
			},
			[]string{"priority", "admitted"},
		),
		RateLimitCooldownActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flashcore_rate_limit_cooldown_active",
				Help: "Whether the RateGovernor is currently in cooldown (1) or not (0)",
			},
			[]string{"service"},
		),
		TransactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flashcore_transactions_total",
				Help: "Total number of transaction engine executions",
			},
			[]string{"type", "status"},
		),
		TransactionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flashcore_transaction_duration_seconds",
				Help:    "Transaction engine execution duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
			},
			[]string{"type"},
		),
		TransactionsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "flashcore_transactions_in_flight",
				Help: "Current number of transactions occupying the engine's fan-out slots",
			},
		),
		AgentExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flashcore_agent_executions_total",
				Help: "Total number of agent executions",
			},
			[]string{"agent"},
		),
		AgentSuccessesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flashcore_agent_successes_total",
				Help: "Total number of successful agent executions",
			},
			[]string{"agent"},
		),
		RealizedProfitTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "flashcore_realized_profit_total",
				Help: "Total realized profit across the ledger",
			},
		),
		PopulationSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "flashcore_strategy_population_size",
				Help: "Current number of strategies in the population",
			},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flashcore_service_info",
				Help: "Service build information",
			},
			[]string{"service", "version"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RateLimitDecisionsTotal,
			m.RateLimitCooldownActive,
			m.TransactionsTotal,
			m.TransactionDuration,
			m.TransactionsInFlight,
			m.AgentExecutionsTotal,
			m.AgentSuccessesTotal,
			m.RealizedProfitTotal,
			m.PopulationSize,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, version).Set(1)
	return m
}

// RecordRateLimitDecision records one RateGovernor admission decision.
func (m *Metrics) RecordRateLimitDecision(priority string, admitted bool) {
	m.RateLimitDecisionsTotal.WithLabelValues(priority, admittedLabel(admitted)).Inc()
}

// SetCooldownActive records whether the RateGovernor is presently in
// cooldown.
func (m *Metrics) SetCooldownActive(service string, active bool) {
	value := 0.0
	if active {
		value = 1.0
	}
	m.RateLimitCooldownActive.WithLabelValues(service).Set(value)
}

// RecordTransaction records one completed transaction engine execution.
func (m *Metrics) RecordTransaction(txType, status string, duration time.Duration) {
	m.TransactionsTotal.WithLabelValues(txType, status).Inc()
	m.TransactionDuration.WithLabelValues(txType).Observe(duration.Seconds())
}

// SetTransactionsInFlight sets the current in-flight transaction count.
func (m *Metrics) SetTransactionsInFlight(count int) {
	m.TransactionsInFlight.Set(float64(count))
}

// RecordAgentExecution records one agent execution attempt and whether it
// succeeded.
func (m *Metrics) RecordAgentExecution(agent string, success bool) {
	m.AgentExecutionsTotal.WithLabelValues(agent).Inc()
	if success {
		m.AgentSuccessesTotal.WithLabelValues(agent).Inc()
	}
}

// SetRealizedProfit sets the ledger's current total realized profit.
func (m *Metrics) SetRealizedProfit(total float64) {
	m.RealizedProfitTotal.Set(total)
}

// SetPopulationSize sets the current strategy population size.
func (m *Metrics) SetPopulationSize(size int) {
	m.PopulationSize.Set(float64(size))
}

func admittedLabel(admitted bool) string {
	if admitted {
		return "true"
	}
	return "false"
}
