package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "ingest_"

	resultOK        = "ok"
	resultInvalid   = "invalid"
	resultDuplicate = "duplicate"
	resultError     = "error"
)

var (
	registerOnce sync.Once

	ingestRequests  *prometheus.CounterVec
	ingestLatency   *prometheus.HistogramVec
	quarantineTotal *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "requests_total",
				Help: "Total ingested payloads by result",
			},
			[]string{"result"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "latency_seconds",
				Help:    "Per-payload ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		quarantineTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "quarantined_total",
				Help: "Total quarantined payloads by failure category",
			},
			[]string{"category"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestLatency,
			quarantineTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveIngest records per-payload duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultOK
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncQuarantine increments the quarantine counter for a failure category.
func IncQuarantine(category string) {
	if category == "" {
		category = "unknown"
	}
	if quarantineTotal != nil {
		quarantineTotal.WithLabelValues(category).Inc()
	}
}

// Exported constants for callers.
const (
	IngestResultOK        = resultOK
	IngestResultInvalid   = resultInvalid
	IngestResultDuplicate = resultDuplicate
	IngestResultError     = resultError
)
