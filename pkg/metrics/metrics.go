package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "todo", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "todo", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	StoreOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "todo", Name: "store_operations_total", Help: "Document store operations by collection, operation and outcome."},
		[]string{"collection", "op", "outcome"},
	)
	HTTPErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "todo", Name: "http_errors_total", Help: "Error responses rendered by error code."},
		[]string{"code"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(StoreOperations)
	reg.MustRegister(HTTPErrors)
}

// ObserveStoreOperation counts one store call; outcome is "ok" or "error".
func ObserveStoreOperation(collection, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	StoreOperations.WithLabelValues(collection, op, outcome).Inc()
}
