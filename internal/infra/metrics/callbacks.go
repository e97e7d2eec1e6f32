package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		callbackRequests,
		callbackDuration,
	)
}

var (
	// route: token|variant|stripe_source
	// result: bounded reason, e.g. ok|payment_not_found|unknown_provider|invalid_response|bad_request|gateway_error|error
	callbackRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callback_requests_total",
			Help: "Inbound gateway callbacks by route and result.",
		},
		[]string{"route", "result", "code"},
	)

	callbackDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_callback_duration_seconds",
			Help:    "Duration of callback dispatch in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route"},
	)
)

func ObserveCallback(route, result string, code int, d time.Duration) {
	callbackRequests.WithLabelValues(norm(route), norm(result), strconv.Itoa(code)).Inc()
	callbackDuration.WithLabelValues(norm(route)).Observe(d.Seconds())
}
