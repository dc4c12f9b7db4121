package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics aggregates the prometheus collectors shared by the staking and
// lending engines.
type EngineMetrics struct {
	operations  *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	totalStaked *prometheus.GaugeVec
	marketSize  *prometheus.GaugeVec
}

var (
	engineOnce     sync.Once
	engineRegistry *EngineMetrics
)

// Engine returns the process-wide engine metrics, registering the collectors
// on first use.
func Engine() *EngineMetrics {
	engineOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ledger_operations_total",
				Help: "Count of completed mutating operations by module and operation.",
			}, []string{"module", "op"}),
			rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ledger_operations_rejected_total",
				Help: "Count of rejected mutating operations by module, operation and error kind.",
			}, []string{"module", "op", "kind"}),
			totalStaked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "ledger_staking_pool_total",
				Help: "Total principal staked per pool.",
			}, []string{"pool"}),
			marketSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "ledger_lending_market_total",
				Help: "Total deposits and borrows per lending market.",
			}, []string{"token", "side"}),
		}
		prometheus.MustRegister(
			engineRegistry.operations,
			engineRegistry.rejected,
			engineRegistry.totalStaked,
			engineRegistry.marketSize,
		)
	})
	return engineRegistry
}

// ObserveOperation records a completed mutation.
func (m *EngineMetrics) ObserveOperation(module, op string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(module, op).Inc()
}

// ObserveRejection records a rejected mutation with its taxonomy kind.
func (m *EngineMetrics) ObserveRejection(module, op, kind string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(module, op, kind).Inc()
}

// SetPoolTotal publishes the staked principal for a pool.
func (m *EngineMetrics) SetPoolTotal(pool string, total float64) {
	if m == nil {
		return
	}
	m.totalStaked.WithLabelValues(pool).Set(total)
}

// SetMarketTotal publishes a deposit or borrow aggregate for a market.
func (m *EngineMetrics) SetMarketTotal(token, side string, total float64) {
	if m == nil {
		return
	}
	m.marketSize.WithLabelValues(token, side).Set(total)
}
