/*
metrics.go - Prometheus instrumentation for the gateway

PURPOSE:
  Counters and histograms around batch persistence. Exposed at /metrics
  by the HTTP server (api/server.go).

METRICS:
  attendance_batches_total{tier,outcome}   applied | failed | rejected
  attendance_rows_upserted_total           canonical records returned
  attendance_rows_deleted_total            row ids actually removed
  attendance_apply_duration_seconds{tier}  adapter apply latency
*/
package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_batches_total",
		Help: "Batch apply attempts by tier and outcome.",
	}, []string{"tier", "outcome"})

	rowsUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_rows_upserted_total",
		Help: "Attendance rows created or updated.",
	})

	rowsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_rows_deleted_total",
		Help: "Attendance rows deleted.",
	})

	applyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "attendance_apply_duration_seconds",
		Help:    "Time spent applying a batch in the backing store.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tier"})
)
