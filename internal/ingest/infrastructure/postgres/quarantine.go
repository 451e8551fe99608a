package postgres

import (
	"context"
	"database/sql"
	"errors"
	"unicode/utf8"
)

// maxReasonLength bounds stored failure reasons; driver errors can embed
// arbitrarily long payload fragments.
const maxReasonLength = 500

// Quarantine upserts terminal failure reasons keyed by raw record id.
// Last reason wins; it is not an append log.
type Quarantine struct {
	db *sql.DB
}

// NewQuarantine constructs a quarantine store.
func NewQuarantine(db *sql.DB) *Quarantine {
	return &Quarantine{db: db}
}

// Record stores the reason a raw record produced no fact, overwriting any
// prior reason for that id.
func (q *Quarantine) Record(ctx context.Context, rawID int64, reason string) error {
	if q == nil || q.db == nil {
		return errors.New("quarantine: nil db")
	}
	reason = truncateReason(reason)
	_, err := q.db.ExecContext(ctx, `
INSERT INTO ingest_error (raw_data_id, error)
VALUES ($1, $2)
ON CONFLICT (raw_data_id) DO UPDATE
SET error = EXCLUDED.error, created_at = NOW()`,
		rawID, reason)
	if err != nil {
		return persistence("quarantine record", err)
	}
	return nil
}

// truncateReason bounds the reason without splitting a multibyte rune;
// Postgres TEXT rejects invalid UTF-8.
func truncateReason(reason string) string {
	if len(reason) <= maxReasonLength {
		return reason
	}
	cut := maxReasonLength
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}
