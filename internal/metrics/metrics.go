// Package metrics holds Prometheus instruments that are used across the
// worker.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ShopSyncsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shopsync_shop_syncs_in_flight",
			Help: "Number of shop pipelines currently running.",
		})

	ShopSyncsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopsync_shop_syncs_total",
			Help: "Completed shop pipelines by terminal status.",
		}, []string{"status"})

	ShopSyncSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shopsync_shop_sync_duration_seconds",
			Help:    "Wall-clock duration of one shop pipeline.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		})

	OrphanVariantsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shopsync_orphan_variants_total",
			Help: "Cumulative variants excluded because their parent product was absent.",
		})
)

func init() {
	prometheus.MustRegister(
		ShopSyncsInFlight,
		ShopSyncsTotal,
		ShopSyncSeconds,
		OrphanVariantsTotal,
	)
}
