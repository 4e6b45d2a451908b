package metrics

import (
	"math/big"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// OracleMetrics tracks price submission outcomes and the last published
// price per collateral code.
type OracleMetrics struct {
	submissions *prometheus.CounterVec
	lastPrice   *prometheus.GaugeVec
}

var (
	oracleOnce     sync.Once
	oracleRegistry *OracleMetrics
)

func Oracle() *OracleMetrics {
	oracleOnce.Do(func() {
		oracleRegistry = &OracleMetrics{
			submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "oracle_submissions_total",
				Help: "Count of price submissions by collateral code and outcome.",
			}, []string{"code", "outcome"}),
			lastPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "oracle_last_price",
				Help: "Last accepted scaled price per collateral code.",
			}, []string{"code"}),
		}
		prometheus.MustRegister(
			oracleRegistry.submissions,
			oracleRegistry.lastPrice,
		)
	})
	return oracleRegistry
}

// RecordSubmission counts one submission attempt for the code.
func (m *OracleMetrics) RecordSubmission(code string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.submissions.WithLabelValues(strings.ToUpper(code), outcome).Inc()
}

// SetLastPrice publishes the last accepted price for the code.
func (m *OracleMetrics) SetLastPrice(code string, price *big.Int) {
	if m == nil || price == nil {
		return
	}
	value, _ := new(big.Float).SetInt(price).Float64()
	m.lastPrice.WithLabelValues(strings.ToUpper(code)).Set(value)
}
