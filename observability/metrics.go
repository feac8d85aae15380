package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketplaceMetrics records engine activity for the /metrics endpoint.
type MarketplaceMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	sales      *prometheus.CounterVec
	pools      prometheus.Counter
	claims     prometheus.Counter
}

var (
	marketplaceOnce sync.Once
	marketplaceReg  *MarketplaceMetrics
)

// Marketplace returns the lazily-initialised marketplace metrics registry.
func Marketplace() *MarketplaceMetrics {
	marketplaceOnce.Do(func() {
		marketplaceReg = &MarketplaceMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "curio",
				Subsystem: "node",
				Name:      "operations_total",
				Help:      "Total public operations segmented by operation and outcome.",
			}, []string{"op", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "curio",
				Subsystem: "node",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for public operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			sales: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "curio",
				Subsystem: "market",
				Name:      "sales_total",
				Help:      "Completed sales segmented by payment rail.",
			}, []string{"rail"}),
			pools: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "curio",
				Subsystem: "split",
				Name:      "pool_settlements_total",
				Help:      "Pool distributions executed by the splitter.",
			}),
			claims: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "curio",
				Subsystem: "claim",
				Name:      "claims_total",
				Help:      "Withdrawals paid out of the claim ledger.",
			}),
		}
		prometheus.MustRegister(
			marketplaceReg.operations,
			marketplaceReg.latency,
			marketplaceReg.sales,
			marketplaceReg.pools,
			marketplaceReg.claims,
		)
	})
	return marketplaceReg
}

// ObserveOperation records one public operation with its outcome and latency.
func (m *MarketplaceMetrics) ObserveOperation(op, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(seconds)
}

// SaleSettled records a completed sale on the given payment rail.
func (m *MarketplaceMetrics) SaleSettled(rail string) {
	if m == nil {
		return
	}
	m.sales.WithLabelValues(rail).Inc()
}

// PoolSettled records a completed pool distribution.
func (m *MarketplaceMetrics) PoolSettled() {
	if m == nil {
		return
	}
	m.pools.Inc()
}

// ClaimPaid records a completed claim withdrawal.
func (m *MarketplaceMetrics) ClaimPaid() {
	if m == nil {
		return
	}
	m.claims.Inc()
}
