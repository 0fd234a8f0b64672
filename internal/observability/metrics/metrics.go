package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatpay_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatpay_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	paymentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatpay_payments_created_total",
		Help: "Count of payment intents created",
	})

	paymentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatpay_payment_transitions_total",
		Help: "Count of payment state transitions by resulting status",
	}, []string{"status"})

	blockOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatpay_block_operations_total",
		Help: "Count of block and unblock operations",
	}, []string{"operation"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObservePaymentCreated increments the created-payments counter
func ObservePaymentCreated() {
	paymentsCreated.Inc()
}

// ObservePaymentTransition records a transition into the given status
func ObservePaymentTransition(status string) {
	paymentTransitions.WithLabelValues(status).Inc()
}

// ObserveBlockOperation records a block or unblock
func ObserveBlockOperation(operation string) {
	blockOperations.WithLabelValues(operation).Inc()
}
