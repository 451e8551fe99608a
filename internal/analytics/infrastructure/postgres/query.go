package postgres

import (
	"context"
	"database/sql"
	"errors"

	analytics "able-iot-cloud/internal/analytics/domain"
	"able-iot-cloud/internal/analytics/unify"
)

const defaultRowLimit = 1000

// Query reads the derived views and diagnostic queries.
type Query struct {
	db *sql.DB
}

// NewQuery constructs a read-model query.
func NewQuery(db *sql.DB) *Query {
	return &Query{db: db}
}

// AvgExtension returns the mean canonical extension per device.
func (q *Query) AvgExtension(ctx context.Context) ([]analytics.AvgExtension, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("analytics query: nil db")
	}
	rows, err := q.db.QueryContext(ctx, `
SELECT device_id, avg_extension_mm
FROM metric_avg_extension_mm
WHERE avg_extension_mm IS NOT NULL
ORDER BY device_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]analytics.AvgExtension, 0)
	for rows.Next() {
		var row analytics.AvgExtension
		if err := rows.Scan(&row.DeviceID, &row.AvgExtensionMM); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// ExtensionVsRetraction returns directional transition counts per device.
func (q *Query) ExtensionVsRetraction(ctx context.Context) ([]analytics.ExtensionRetraction, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("analytics query: nil db")
	}
	rows, err := q.db.QueryContext(ctx, `
SELECT device_id, extensions, retractions
FROM metric_extension_vs_retraction
ORDER BY device_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]analytics.ExtensionRetraction, 0)
	for rows.Next() {
		var row analytics.ExtensionRetraction
		if err := rows.Scan(&row.DeviceID, &row.Extensions, &row.Retractions); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// BatterySummary returns battery statistics per device.
func (q *Query) BatterySummary(ctx context.Context) ([]analytics.BatterySummary, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("analytics query: nil db")
	}
	rows, err := q.db.QueryContext(ctx, `
SELECT device_id, min_pct, max_pct, avg_pct, last_seen
FROM metric_battery_summary
ORDER BY device_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]analytics.BatterySummary, 0)
	for rows.Next() {
		var row analytics.BatterySummary
		if err := rows.Scan(&row.DeviceID, &row.MinPct, &row.MaxPct, &row.AvgPct, &row.LastSeen); err != nil {
			return nil, err
		}
		row.LastSeen = row.LastSeen.UTC()
		result = append(result, row)
	}
	return result, rows.Err()
}

// PlatformHeight returns height statistics per device.
func (q *Query) PlatformHeight(ctx context.Context) ([]analytics.PlatformHeight, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("analytics query: nil db")
	}
	rows, err := q.db.QueryContext(ctx, `
SELECT device_id, min_height_mm, max_height_mm, avg_height_mm
FROM metric_platform_height
ORDER BY device_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]analytics.PlatformHeight, 0)
	for rows.Next() {
		var row analytics.PlatformHeight
		if err := rows.Scan(&row.DeviceID, &row.MinHeightMM, &row.MaxHeightMM, &row.AvgHeightMM); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// SideSwitches counts sign transitions of the unified reading per device.
// Diagnostic query, not a persisted view: center (zero) readings are
// dropped before pairing, so transitions into or out of center never
// count.
func (q *Query) SideSwitches(ctx context.Context) ([]analytics.SideSwitch, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("analytics query: nil db")
	}
	rows, err := q.db.QueryContext(ctx, `
WITH classified AS (
	SELECT
		device_id,
		observed_at,
		extension_mm,
		CASE
			WHEN extension_mm < 0 THEN 'left'
			WHEN extension_mm > 0 THEN 'right'
			ELSE 'center'
		END AS side
	FROM unified_platform_extension
	WHERE extension_mm IS NOT NULL
),
sides AS (
	SELECT
		device_id,
		side,
		LAG(side) OVER (
			PARTITION BY device_id
			ORDER BY observed_at, extension_mm
		) AS prev_side
	FROM classified
	WHERE side <> 'center'
)
SELECT
	device_id,
	COUNT(*) FILTER (WHERE prev_side = 'left' AND side = 'right') AS left_to_right,
	COUNT(*) FILTER (WHERE prev_side = 'right' AND side = 'left') AS right_to_left
FROM sides
GROUP BY device_id
ORDER BY device_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]analytics.SideSwitch, 0)
	for rows.Next() {
		var row analytics.SideSwitch
		if err := rows.Scan(&row.DeviceID, &row.LeftToRight, &row.RightToLeft); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// UnifiedReadings returns unification view rows, newest first. The
// conversion runs in Go over the stored values, which stay untouched;
// deviceID 0 means all devices.
func (q *Query) UnifiedReadings(ctx context.Context, deviceID int64, limit int) ([]analytics.UnifiedReading, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("analytics query: nil db")
	}
	if limit <= 0 {
		limit = defaultRowLimit
	}

	rows, err := q.db.QueryContext(ctx, `
SELECT p.device_id, p.record_time, rt.name, p.value
FROM processed_record p
JOIN record_type rt ON rt.id = p.type
WHERE rt.name IN ($1, $2)
	AND ($3 = 0 OR p.device_id = $3)
ORDER BY p.record_time DESC, p.id DESC
LIMIT $4`,
		unify.TypeExtensionMM, unify.TypeExtensionTicks, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]analytics.UnifiedReading, 0)
	for rows.Next() {
		var (
			reading  analytics.UnifiedReading
			typeName string
			value    float64
		)
		if err := rows.Scan(&reading.DeviceID, &reading.ObservedAt, &typeName, &value); err != nil {
			return nil, err
		}
		reading.ObservedAt = reading.ObservedAt.UTC()
		if mm, ok := unify.ExtensionMM(typeName, value); ok {
			reading.ExtensionMM = &mm
		}
		result = append(result, reading)
	}
	return result, rows.Err()
}

// RawStatus returns diagnostic rows correlating raw payloads with their
// eventual fact or error, newest first.
func (q *Query) RawStatus(ctx context.Context, limit int) ([]analytics.RawStatus, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("analytics query: nil db")
	}
	if limit <= 0 {
		limit = defaultRowLimit
	}

	rows, err := q.db.QueryContext(ctx, `
SELECT raw_data_id, device_id, parse_ok, error
FROM raw_record_status
ORDER BY raw_data_id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]analytics.RawStatus, 0)
	for rows.Next() {
		var (
			row      analytics.RawStatus
			deviceID sql.NullInt64
			reason   sql.NullString
		)
		if err := rows.Scan(&row.RawDataID, &deviceID, &row.ParseOK, &reason); err != nil {
			return nil, err
		}
		if deviceID.Valid {
			row.DeviceID = &deviceID.Int64
		}
		if reason.Valid {
			row.Error = &reason.String
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

var _ analytics.Reader = (*Query)(nil)
