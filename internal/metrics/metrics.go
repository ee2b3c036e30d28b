package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics methods are safe on a nil receiver, which disables collection.
type Metrics struct {
	tokenOps  *prometheus.CounterVec
	rateLimit *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tokenOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "token_operations_total",
			Help:      "Token lifecycle operations by outcome.",
		}, []string{"operation", "result"}),
		rateLimit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "rate_limit_decisions_total",
			Help:      "Rate limiter decisions.",
		}, []string{"decision"}),
	}
	reg.MustRegister(m.tokenOps, m.rateLimit)
	return m
}

func (m *Metrics) TokenOperation(operation string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.tokenOps.WithLabelValues(operation, result).Inc()
}

// RateLimitDecision records "allowed", "denied" or "error".
func (m *Metrics) RateLimitDecision(decision string) {
	if m == nil {
		return
	}
	m.rateLimit.WithLabelValues(decision).Inc()
}
