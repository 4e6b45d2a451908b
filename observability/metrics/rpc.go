package metrics

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RPCMetrics records JSON-RPC handler activity.
type RPCMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles prometheus.Counter
}

var (
	rpcOnce     sync.Once
	rpcRegistry *RPCMetrics
)

func RPC() *RPCMetrics {
	rpcOnce.Do(func() {
		rpcRegistry = &RPCMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rpc_requests_total",
				Help: "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rpc_errors_total",
				Help: "Total JSON-RPC errors segmented by method and code.",
			}, []string{"method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "rpc_request_duration_seconds",
				Help:    "Latency distribution for JSON-RPC handlers.",
				Buckets: prometheus.DefBuckets,
			}, []string{"method"}),
			throttles: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "rpc_throttles_total",
				Help: "Count of requests rejected by the rate limiter.",
			}),
		}
		prometheus.MustRegister(
			rpcRegistry.requests,
			rpcRegistry.errors,
			rpcRegistry.latency,
			rpcRegistry.throttles,
		)
	})
	return rpcRegistry
}

// Observe records the outcome and latency of one handled request.
func (m *RPCMetrics) Observe(method string, errCode int, duration time.Duration) {
	if m == nil {
		return
	}
	name := strings.TrimSpace(method)
	if name == "" {
		name = "unknown"
	}
	outcome := "ok"
	if errCode != 0 {
		outcome = "error"
		m.errors.WithLabelValues(name, strconv.Itoa(errCode)).Inc()
	}
	m.requests.WithLabelValues(name, outcome).Inc()
	m.latency.WithLabelValues(name).Observe(duration.Seconds())
}

// RecordThrottle counts one rate-limited request.
func (m *RPCMetrics) RecordThrottle() {
	if m == nil {
		return
	}
	m.throttles.Inc()
}
