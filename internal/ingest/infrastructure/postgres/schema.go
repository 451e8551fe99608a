package postgres

import (
	"context"
	"database/sql"
)

// schemaStatements is the persisted write-path schema. Statements are
// idempotent so they run unconditionally at process start. raw_record is
// the irrecoverable-loss boundary: everything else is derivable from it.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS device (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	init_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE TABLE IF NOT EXISTS record_type (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	firmware_version TEXT
)`,
	`CREATE TABLE IF NOT EXISTS raw_record (
	id BIGSERIAL PRIMARY KEY,
	raw_message JSONB NOT NULL,
	arrival_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE TABLE IF NOT EXISTS ingest_error (
	raw_data_id BIGINT PRIMARY KEY REFERENCES raw_record(id),
	error TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE TABLE IF NOT EXISTS processed_record (
	id BIGSERIAL PRIMARY KEY,
	device_id BIGINT NOT NULL REFERENCES device(id),
	raw_data_id BIGINT NOT NULL REFERENCES raw_record(id),
	record_time TIMESTAMPTZ NOT NULL,
	type BIGINT NOT NULL REFERENCES record_type(id),
	value DOUBLE PRECISION NOT NULL
)`,
	// Structural idempotency: at most one fact per raw payload.
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_processed_record_raw
	ON processed_record (raw_data_id)`,
	// Logical idempotency: at most one fact per logical event.
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_processed_record_logical
	ON processed_record (device_id, type, record_time, value)`,
}

// EnsureSchema applies the write-path schema.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return persistence("ensure schema", err)
		}
	}
	return nil
}
