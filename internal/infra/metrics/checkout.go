package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		checkoutChargesTotal,
		checkoutRevenueTotal,
		chargeStatusPollsTotal,
		gatewayLatency,
	)
}

var (
	// result: created|validation_error|gateway_error|store_error|rate_limited
	checkoutChargesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_charges_total",
			Help: "Checkout submissions by result.",
		},
		[]string{"result"},
	)

	checkoutRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_revenue_cents_total",
			Help: "Approved order amounts in cents, labeled by settlement path.",
		},
		[]string{"path"},
	)

	// result: active|completed|expired|error
	chargeStatusPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "charge_status_polls_total",
			Help: "Charge status polls by observed result.",
		},
		[]string{"result"},
	)

	gatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pix_gateway_request_duration_seconds",
			Help:    "Latency of PIX provider calls.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"op", "success"},
	)
)

func IncCheckoutCharge(result string) {
	checkoutChargesTotal.WithLabelValues(norm(result)).Inc()
}

func AddRevenue(path string, cents int64) {
	checkoutRevenueTotal.WithLabelValues(norm(path)).Add(float64(cents))
}

func IncChargePoll(result string) {
	chargeStatusPollsTotal.WithLabelValues(norm(result)).Inc()
}

func ObserveGateway(op string, seconds float64, success bool) {
	s := "false"
	if success {
		s = "true"
	}
	gatewayLatency.WithLabelValues(norm(op), s).Observe(seconds)
}
