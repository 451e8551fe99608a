// Package analytics defines the derived read models computed over the
// fact table and the unification view. Everything here is read-only: the
// read side never touches the raw ledger or the quarantine except through
// the diagnostic status rows.
package analytics

import (
	"context"
	"time"
)

// UnifiedReading is one row of the unification view: every extension
// reading expressed in canonical millimeters. ExtensionMM is nil when the
// source row carried an extension type the converter does not recognize.
type UnifiedReading struct {
	DeviceID    int64     `json:"device_id"`
	ObservedAt  time.Time `json:"observed_at"`
	ExtensionMM *float64  `json:"extension_mm"`
}

// AvgExtension is the mean canonical extension per device.
type AvgExtension struct {
	DeviceID       int64   `json:"device_id"`
	AvgExtensionMM float64 `json:"avg_extension_mm"`
}

// ExtensionRetraction counts directional transitions between consecutive
// unified readings per device. Equal consecutive values count as neither.
type ExtensionRetraction struct {
	DeviceID    int64 `json:"device_id"`
	Extensions  int64 `json:"extensions"`
	Retractions int64 `json:"retractions"`
}

// BatterySummary aggregates battery charge facts per device.
type BatterySummary struct {
	DeviceID int64     `json:"device_id"`
	MinPct   float64   `json:"min_pct"`
	MaxPct   float64   `json:"max_pct"`
	AvgPct   float64   `json:"avg_pct"`
	LastSeen time.Time `json:"last_seen"`
}

// PlatformHeight aggregates platform height facts per device.
type PlatformHeight struct {
	DeviceID    int64   `json:"device_id"`
	MinHeightMM float64 `json:"min_height_mm"`
	MaxHeightMM float64 `json:"max_height_mm"`
	AvgHeightMM float64 `json:"avg_height_mm"`
}

// SideSwitch counts sign transitions of the unified reading per device,
// ignoring zero (center) readings.
type SideSwitch struct {
	DeviceID    int64 `json:"device_id"`
	LeftToRight int64 `json:"left_to_right"`
	RightToLeft int64 `json:"right_to_left"`
}

// RawStatus correlates a raw payload with its eventual fact or error.
type RawStatus struct {
	RawDataID int64   `json:"raw_data_id"`
	DeviceID  *int64  `json:"device_id"`
	ParseOK   bool    `json:"parse_ok"`
	Error     *string `json:"error"`
}

// Snapshot bundles the four metric read models for streaming and export.
type Snapshot struct {
	Avg     []AvgExtension        `json:"avg"`
	ExtRet  []ExtensionRetraction `json:"exret"`
	Battery []BatterySummary      `json:"battery"`
	Height  []PlatformHeight      `json:"height"`
}

// Reader loads the read models from committed state. Two calls issued
// moments apart may disagree while writers are racing; each call is
// individually consistent.
type Reader interface {
	AvgExtension(ctx context.Context) ([]AvgExtension, error)
	ExtensionVsRetraction(ctx context.Context) ([]ExtensionRetraction, error)
	BatterySummary(ctx context.Context) ([]BatterySummary, error)
	PlatformHeight(ctx context.Context) ([]PlatformHeight, error)
	SideSwitches(ctx context.Context) ([]SideSwitch, error)
	UnifiedReadings(ctx context.Context, deviceID int64, limit int) ([]UnifiedReading, error)
	RawStatus(ctx context.Context, limit int) ([]RawStatus, error)
}
