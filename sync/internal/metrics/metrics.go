package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RowsSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gi_sync_rows_total",
			Help: "Total number of rows forwarded to the warehouse",
		},
		[]string{"kind", "status"},
	)

	ValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gi_sync_validation_failures_total",
			Help: "Total number of requests rejected before any warehouse call",
		},
		[]string{"kind"},
	)

	WarehouseCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gi_sync_warehouse_call_duration_seconds",
			Help:    "Duration of warehouse REST calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	AnalyticsRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gi_sync_analytics_requests_total",
			Help: "Total number of analytics query requests",
		},
		[]string{"status"},
	)
)
