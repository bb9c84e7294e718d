package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(settlementTransitionsTotal, webhookRequestsTotal) }

var (
	// path: poll|webhook|reconciler|admin ; result: applied|noop|error
	settlementTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_transitions_total",
			Help: "Order status transitions attempted by settlement paths.",
		},
		[]string{"path", "status", "result"},
	)

	// outcome: ignored|pending|not_found|already_approved|success|error|bad_request|bad_signature
	webhookRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_requests_total",
			Help: "Inbound PIX webhook deliveries by outcome.",
		},
		[]string{"outcome"},
	)
)

func IncTransition(path, status, result string) {
	settlementTransitionsTotal.WithLabelValues(norm(path), norm(status), norm(result)).Inc()
}

func IncWebhook(outcome string) {
	webhookRequestsTotal.WithLabelValues(norm(outcome)).Inc()
}
