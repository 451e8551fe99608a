package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"able-iot-cloud/internal/analytics/unify"
)

// viewStatements derive the read models from committed facts on every
// read; nothing is materialized, so the views are always consistent with
// the fact table. The ticks→mm divisor is compiled in from the same named
// constant the Go converter uses.
var viewStatements = []string{
	fmt.Sprintf(`CREATE OR REPLACE VIEW unified_platform_extension AS
SELECT
	p.device_id,
	p.record_time AS observed_at,
	CASE rt.name
		WHEN '%s' THEN p.value
		WHEN '%s' THEN p.value / %.1f
	END AS extension_mm
FROM processed_record p
JOIN record_type rt ON rt.id = p.type
WHERE rt.name IN ('%s', '%s')`,
		unify.TypeExtensionMM, unify.TypeExtensionTicks, unify.TicksPerMillimeter,
		unify.TypeExtensionMM, unify.TypeExtensionTicks),

	`CREATE OR REPLACE VIEW metric_avg_extension_mm AS
SELECT device_id, AVG(extension_mm) AS avg_extension_mm
FROM unified_platform_extension
GROUP BY device_id`,

	// Ties in observed_at are broken by extension_mm so the ordering is
	// deterministic across runs.
	`CREATE OR REPLACE VIEW metric_extension_vs_retraction AS
WITH ordered AS (
	SELECT
		device_id,
		extension_mm,
		LAG(extension_mm) OVER (
			PARTITION BY device_id
			ORDER BY observed_at, extension_mm
		) AS prev_mm
	FROM unified_platform_extension
)
SELECT
	device_id,
	COUNT(*) FILTER (WHERE prev_mm IS NOT NULL AND extension_mm > prev_mm) AS extensions,
	COUNT(*) FILTER (WHERE prev_mm IS NOT NULL AND extension_mm < prev_mm) AS retractions
FROM ordered
GROUP BY device_id`,

	`CREATE OR REPLACE VIEW metric_battery_summary AS
SELECT
	p.device_id,
	MIN(p.value) AS min_pct,
	MAX(p.value) AS max_pct,
	AVG(p.value) AS avg_pct,
	MAX(p.record_time) AS last_seen
FROM processed_record p
JOIN record_type rt ON rt.id = p.type
WHERE rt.name = 'battery_charge'
GROUP BY p.device_id`,

	`CREATE OR REPLACE VIEW metric_platform_height AS
SELECT
	p.device_id,
	MIN(p.value) AS min_height_mm,
	MAX(p.value) AS max_height_mm,
	AVG(p.value) AS avg_height_mm
FROM processed_record p
JOIN record_type rt ON rt.id = p.type
WHERE rt.name = 'platform_height_mm'
GROUP BY p.device_id`,

	`CREATE OR REPLACE VIEW raw_record_status AS
SELECT
	r.id AS raw_data_id,
	p.device_id,
	(p.id IS NOT NULL) AS parse_ok,
	e.error
FROM raw_record r
LEFT JOIN processed_record p ON p.raw_data_id = r.id
LEFT JOIN ingest_error e ON e.raw_data_id = r.id`,
}

// EnsureViews applies the derived views. The write-path tables must exist
// first.
func EnsureViews(ctx context.Context, db *sql.DB) error {
	for _, stmt := range viewStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure views: %w", err)
		}
	}
	return nil
}
