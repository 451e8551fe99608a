package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "raw_records",
			Help: "Raw ledger rows",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM raw_record")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "errors_quarantined",
			Help: "Raw records with a quarantined failure reason",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM ingest_error")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "raw_records_unresolved",
			Help: "Raw records with neither a fact nor a quarantined reason",
		},
		func() float64 {
			return queryCount(db, logger, `
SELECT COUNT(*)
FROM raw_record r
LEFT JOIN processed_record p ON p.raw_data_id = r.id
LEFT JOIN ingest_error e ON e.raw_data_id = r.id
WHERE p.id IS NULL AND e.raw_data_id IS NULL`)
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
