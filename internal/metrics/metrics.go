package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the arena collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	Cycles       *prometheus.CounterVec
	Trades       *prometheus.CounterVec
	LLMFallbacks *prometheus.CounterVec
	TotalValue   *prometheus.GaugeVec
	SharpeRatio  *prometheus.GaugeVec
	EngineUp     prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Cycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_agent_cycles_total",
			Help: "Decision cycles run per agent, by outcome",
		}, []string{"agent", "outcome"}),
		Trades: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_trades_total",
			Help: "Trades recorded per agent, by action and status",
		}, []string{"agent", "action", "status"}),
		LLMFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_llm_fallbacks_total",
			Help: "Language model calls that degraded to the fallback hold decision",
		}, []string{"provider"}),
		TotalValue: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arena_portfolio_total_value",
			Help: "Latest portfolio total value per agent",
		}, []string{"agent"}),
		SharpeRatio: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arena_portfolio_sharpe_ratio",
			Help: "Latest Sharpe ratio per agent",
		}, []string{"agent"}),
		EngineUp: f.NewGauge(prometheus.GaugeOpts{
			Name: "arena_engine_running",
			Help: "Trading engine state (1=running, 0=stopped)",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveCycle(agent, outcome string) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(agent, outcome).Inc()
}

func (m *Metrics) ObserveTrade(agent, action, status string) {
	if m == nil {
		return
	}
	m.Trades.WithLabelValues(agent, action, status).Inc()
}

func (m *Metrics) ObserveFallback(provider string) {
	if m == nil {
		return
	}
	m.LLMFallbacks.WithLabelValues(provider).Inc()
}

func (m *Metrics) ObservePortfolio(agent string, totalValue, sharpe float64) {
	if m == nil {
		return
	}
	m.TotalValue.WithLabelValues(agent).Set(totalValue)
	m.SharpeRatio.WithLabelValues(agent).Set(sharpe)
}

func (m *Metrics) SetEngineRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.EngineUp.Set(1)
	} else {
		m.EngineUp.Set(0)
	}
}
