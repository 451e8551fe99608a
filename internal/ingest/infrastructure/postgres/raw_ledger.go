package postgres

import (
	"context"
	"database/sql"
	"errors"
)

// RawLedger is the append-only Postgres store of as-received payloads.
type RawLedger struct {
	db *sql.DB
}

// NewRawLedger constructs a raw ledger.
func NewRawLedger(db *sql.DB) *RawLedger {
	return &RawLedger{db: db}
}

// Append inserts the payload and returns the new raw record id. id is
// bigserial and arrival_time defaults to now().
func (r *RawLedger) Append(ctx context.Context, payload []byte) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("raw ledger: nil db")
	}
	var id int64
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO raw_record (raw_message) VALUES ($1::jsonb) RETURNING id",
		string(payload),
	).Scan(&id)
	if err != nil {
		return 0, persistence("raw ledger append", err)
	}
	return id, nil
}
