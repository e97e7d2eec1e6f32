package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		dbPoolConns,
		dbPoolEmptyAcquires,
	)
}

var (
	// state: max|total|idle|in_use
	dbPoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_connections",
			Help: "Connections in the payment store pool by state.",
		},
		[]string{"state"},
	)

	// Acquires that had to wait because no idle connection was available.
	dbPoolEmptyAcquires = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_pool_empty_acquires",
			Help: "Cumulative acquires that found the pool empty.",
		},
	)
)

// PoolStats is the subset of pgxpool.Stat the gauges expose.
type PoolStats struct {
	Max, Total, Idle, InUse int32
	EmptyAcquires           int64
}

func SetDBPoolStats(s PoolStats) {
	dbPoolConns.WithLabelValues("max").Set(float64(s.Max))
	dbPoolConns.WithLabelValues("total").Set(float64(s.Total))
	dbPoolConns.WithLabelValues("idle").Set(float64(s.Idle))
	dbPoolConns.WithLabelValues("in_use").Set(float64(s.InUse))
	dbPoolEmptyAcquires.Set(float64(s.EmptyAcquires))
}
