package ingest

import (
	"context"
	"time"
)

// Result is the per-payload outcome reported to the caller. A duplicate
// insert is a success with a null ProcessedID, distinguishable from
// StatusInvalid.
type Result struct {
	RawID       int64  `json:"raw_id"`
	ProcessedID *int64 `json:"processed_id"`
	Status      string `json:"status"`
}

const (
	StatusOK      = "ok"
	StatusInvalid = "invalid"
)

// Fact is a normalized measurement derived from exactly one raw record.
type Fact struct {
	DeviceID   int64
	RawID      int64
	RecordTime time.Time
	TypeID     int64
	Value      float64
}

// RawLedger appends every payload as received, before any validation
// decision. A payload that never reaches the ledger is lost forever.
type RawLedger interface {
	Append(ctx context.Context, payload []byte) (int64, error)
}

// Quarantine stores the latest known reason a raw record produced no fact.
// Keyed by raw record id; a retry overwrites the previous reason.
type Quarantine interface {
	Record(ctx context.Context, rawID int64, reason string) error
}

// DeviceRepository resolves durable device identities.
type DeviceRepository interface {
	// GetOrCreateBySerial returns the device whose name is the given
	// serial, creating it on first sight. init_date is set on creation
	// only.
	GetOrCreateBySerial(ctx context.Context, serial string) (int64, error)
	// EnsureByID lazily materializes a placeholder device for a legacy
	// numeric id that never sent a startup event.
	EnsureByID(ctx context.Context, deviceID int64) error
}

// RecordTypeRepository maintains the append-only record type dimension.
type RecordTypeRepository interface {
	// IDByName returns the id for a type name, inserting the row on
	// first observation.
	IDByName(ctx context.Context, name string) (int64, error)
	// SetFirmware records a firmware version on a record type row; the
	// only update the dimension permits.
	SetFirmware(ctx context.Context, name, version string) error
}

// FactWriter inserts facts. created is false when one of the two
// uniqueness guards suppressed the insert; that is a success, not an
// error.
type FactWriter interface {
	Insert(ctx context.Context, fact Fact) (id int64, created bool, err error)
}
