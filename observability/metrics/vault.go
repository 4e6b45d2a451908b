package metrics

import (
	"math/big"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetrics tracks engine operation outcomes and per-asset exposure.
type VaultMetrics struct {
	operations   *prometheus.CounterVec
	liquidations *prometheus.CounterVec
	totalDebt    *prometheus.GaugeVec
	totalColl    *prometheus.GaugeVec
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_operations_total",
				Help: "Count of vault engine operations by name and outcome.",
			}, []string{"operation", "outcome"}),
			liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_liquidations_total",
				Help: "Count of executed liquidations by collateral code.",
			}, []string{"code"}),
			totalDebt: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "vault_total_debt",
				Help: "Aggregate stable debt outstanding per collateral code.",
			}, []string{"code"}),
			totalColl: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "vault_total_collateral",
				Help: "Aggregate locked collateral per collateral code.",
			}, []string{"code"}),
		}
		prometheus.MustRegister(
			vaultRegistry.operations,
			vaultRegistry.liquidations,
			vaultRegistry.totalDebt,
			vaultRegistry.totalColl,
		)
	})
	return vaultRegistry
}

// RecordOperation counts one engine call by operation name and outcome.
func (m *VaultMetrics) RecordOperation(operation string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.operations.WithLabelValues(strings.ToLower(operation), outcome).Inc()
}

// RecordLiquidation counts one executed liquidation for the code.
func (m *VaultMetrics) RecordLiquidation(code string) {
	if m == nil {
		return
	}
	m.liquidations.WithLabelValues(strings.ToUpper(code)).Inc()
}

// SetExposure publishes the aggregate debt and collateral for the code.
// Values beyond float precision saturate rather than wrap.
func (m *VaultMetrics) SetExposure(code string, collateral, debt *big.Int) {
	if m == nil {
		return
	}
	label := strings.ToUpper(code)
	if collateral != nil {
		value, _ := new(big.Float).SetInt(collateral).Float64()
		m.totalColl.WithLabelValues(label).Set(value)
	}
	if debt != nil {
		value, _ := new(big.Float).SetInt(debt).Float64()
		m.totalDebt.WithLabelValues(label).Set(value)
	}
}
