package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

// RecordTypeRepository maintains the record type dimension. Name→id pairs
// are immutable once created, so a process-local cache is safe.
type RecordTypeRepository struct {
	db *sql.DB

	mu    sync.RWMutex
	cache map[string]int64
}

// NewRecordTypeRepository constructs a repository.
func NewRecordTypeRepository(db *sql.DB) *RecordTypeRepository {
	return &RecordTypeRepository{db: db, cache: make(map[string]int64)}
}

// IDByName returns the id for a type name, inserting the row on first
// observation.
func (r *RecordTypeRepository) IDByName(ctx context.Context, name string) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("record type repo: nil db")
	}
	if name == "" {
		return 0, errors.New("record type repo: empty name")
	}

	r.mu.RLock()
	id, hit := r.cache[name]
	r.mu.RUnlock()
	if hit {
		return id, nil
	}

	err := r.db.QueryRowContext(ctx, `
INSERT INTO record_type (name)
VALUES ($1)
ON CONFLICT (name) DO NOTHING
RETURNING id`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		err = r.db.QueryRowContext(ctx, "SELECT id FROM record_type WHERE name = $1", name).Scan(&id)
	}
	if err != nil {
		return 0, persistence("record type resolve", err)
	}

	r.mu.Lock()
	r.cache[name] = id
	r.mu.Unlock()
	return id, nil
}

// SetFirmware records a firmware version on a record type row, creating
// the row if a startup event arrives before any telemetry of that type.
func (r *RecordTypeRepository) SetFirmware(ctx context.Context, name, version string) error {
	if r == nil || r.db == nil {
		return errors.New("record type repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO record_type (name, firmware_version)
VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE
SET firmware_version = EXCLUDED.firmware_version`,
		name, version)
	if err != nil {
		return persistence("record type firmware", err)
	}
	return nil
}
