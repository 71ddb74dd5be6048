package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SettlementTotal counts settlement outcomes by kind (sale, tab_open, tab_close) and result.
	SettlementTotal *prometheus.CounterVec
	// StockDeductedTotal accumulates deducted stock per ingredient in its own unit.
	StockDeductedTotal *prometheus.CounterVec
	// OpenTabs tracks the number of unpaid tabs seen by the last tab listing.
	OpenTabs prometheus.Gauge
	// StoreTxAttempts records how many attempts each atomic unit of work needed.
	StoreTxAttempts prometheus.Histogram
	// LowStockAlertsTotal counts low stock alerts raised by source (settlement, sweep).
	LowStockAlertsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SettlementTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_total",
			Help:      "Count of settlement outcomes.",
		}, []string{"kind", "result"})
		StockDeductedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_deducted_total",
			Help:      "Stock deducted from ingredients by committed settlements.",
		}, []string{"ingredient"})
		OpenTabs = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_tabs",
			Help:      "Number of open tabs awaiting payment.",
		})
		StoreTxAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_tx_attempts",
			Help:      "Attempts needed by atomic units of work before commit or exhaustion.",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		})
		LowStockAlertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_stock_alerts_total",
			Help:      "Low stock alerts raised.",
		}, []string{"source"})

		SettlementTotal = register(reg, SettlementTotal)
		StockDeductedTotal = register(reg, StockDeductedTotal)
		OpenTabs = register(reg, OpenTabs)
		StoreTxAttempts = register(reg, StoreTxAttempts)
		LowStockAlertsTotal = register(reg, LowStockAlertsTotal)
	})
}

// ObserveSettlement increments the settlement counter when metrics are registered.
func ObserveSettlement(kind, result string) {
	if SettlementTotal != nil {
		SettlementTotal.WithLabelValues(kind, result).Inc()
	}
}

// ObserveDeduction adds amount to the per-ingredient deduction counter.
func ObserveDeduction(ingredient string, amount float64) {
	if StockDeductedTotal != nil && amount > 0 {
		StockDeductedTotal.WithLabelValues(ingredient).Add(amount)
	}
}

// ObserveTxAttempts records the attempt count of one unit of work.
func ObserveTxAttempts(attempts int) {
	if StoreTxAttempts != nil {
		StoreTxAttempts.Observe(float64(attempts))
	}
}

// SetOpenTabs updates the open tab gauge.
func SetOpenTabs(n int) {
	if OpenTabs != nil {
		OpenTabs.Set(float64(n))
	}
}

// ObserveLowStockAlert counts a raised low stock alert.
func ObserveLowStockAlert(source string) {
	if LowStockAlertsTotal != nil {
		LowStockAlertsTotal.WithLabelValues(source).Inc()
	}
}
