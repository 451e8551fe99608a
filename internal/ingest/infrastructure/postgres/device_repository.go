package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DeviceRepository resolves device identities against Postgres. Creation
// races are settled by the unique constraints; no external locking.
type DeviceRepository struct {
	db *sql.DB
}

// NewDeviceRepository constructs a repository.
func NewDeviceRepository(db *sql.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// GetOrCreateBySerial stores the serial as device.name and returns the
// device id. init_date is set only when the row is created.
func (r *DeviceRepository) GetOrCreateBySerial(ctx context.Context, serial string) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("device repo: nil db")
	}
	if serial == "" {
		return 0, errors.New("device repo: empty serial")
	}

	var id int64
	err := r.db.QueryRowContext(ctx, `
INSERT INTO device (name, init_date)
VALUES ($1, NOW())
ON CONFLICT (name) DO NOTHING
RETURNING id`, serial).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, persistence("device create by serial", err)
	}

	// Lost the race or the device already existed.
	err = r.db.QueryRowContext(ctx, "SELECT id FROM device WHERE name = $1", serial).Scan(&id)
	if err != nil {
		return 0, persistence("device lookup by serial", err)
	}
	return id, nil
}

// EnsureByID creates a placeholder device row if the numeric id is
// unknown. Legacy devices emit numeric ids without a prior startup event;
// the placeholder name is stable so replays converge on one row.
func (r *DeviceRepository) EnsureByID(ctx context.Context, deviceID int64) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO device (id, name, init_date)
VALUES ($1, $2, NOW())
ON CONFLICT (id) DO NOTHING`,
		deviceID, fmt.Sprintf("device-%d", deviceID))
	if err != nil {
		return persistence("device ensure by id", err)
	}

	// Keep the id sequence ahead of explicitly assigned placeholder ids so
	// serial-provisioned devices never collide with them.
	_, err = r.db.ExecContext(ctx,
		"SELECT setval(pg_get_serial_sequence('device', 'id'), (SELECT MAX(id) FROM device))")
	if err != nil {
		return persistence("device sequence bump", err)
	}
	return nil
}
