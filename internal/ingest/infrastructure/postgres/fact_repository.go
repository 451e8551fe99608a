package postgres

import (
	"context"
	"database/sql"
	"errors"

	ingest "able-iot-cloud/internal/ingest/domain"
)

// FactRepository inserts processed records. The two unique indexes on
// processed_record are the sole concurrency control: concurrent writers may
// race on the same logical event and the constraint decides the winner.
type FactRepository struct {
	db *sql.DB
}

// NewFactRepository constructs a repository.
func NewFactRepository(db *sql.DB) *FactRepository {
	return &FactRepository{db: db}
}

// Insert attempts the fact insert. created is false when either
// idempotency guard suppressed it.
func (r *FactRepository) Insert(ctx context.Context, fact ingest.Fact) (int64, bool, error) {
	if r == nil || r.db == nil {
		return 0, false, errors.New("fact repo: nil db")
	}

	var id int64
	err := r.db.QueryRowContext(ctx, `
INSERT INTO processed_record (device_id, raw_data_id, record_time, type, value)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT DO NOTHING
RETURNING id`,
		fact.DeviceID, fact.RawID, fact.RecordTime, fact.TypeID, fact.Value,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, persistence("fact insert", err)
	}
	return id, true, nil
}
