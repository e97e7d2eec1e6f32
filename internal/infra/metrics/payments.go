package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentTransitions,
		stripeEvents,
	)
}

var (
	// Status changes applied by callbacks, per variant and new status.
	paymentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_status_transitions_total",
			Help: "Payment status changes applied by gateway callbacks.",
		},
		[]string{"variant", "status"},
	)

	// result: processed|duplicate|failed
	stripeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stripe_events_total",
			Help: "Stripe events received on the source callback by type and result.",
		},
		[]string{"type", "result"},
	)
)

func IncPaymentTransition(variant, status string) {
	paymentTransitions.WithLabelValues(norm(variant), norm(status)).Inc()
}

func IncStripeEvent(eventType, result string) {
	if eventType == "" {
		eventType = "unknown"
	}
	stripeEvents.WithLabelValues(norm(eventType), norm(result)).Inc()
}
