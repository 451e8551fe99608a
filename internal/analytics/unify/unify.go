// Package unify reconciles the two incompatible units the fleet reports
// platform extension in. Conversion is a read-time derivation: stored fact
// values are never rewritten.
package unify

// Record type names for the two extension units.
const (
	TypeExtensionTicks = "platform_extension_ticks"
	TypeExtensionMM    = "platform_extension_mm"
)

// TicksPerMillimeter is the fixed global conversion factor for the legacy
// tick unit. There is no per-device calibration yet.
const TicksPerMillimeter = 20.0

// ExtensionMM converts a fact value to canonical millimeters. ok is false
// when the record type is not an extension reading.
func ExtensionMM(recordType string, value float64) (mm float64, ok bool) {
	switch recordType {
	case TypeExtensionMM:
		return value, true
	case TypeExtensionTicks:
		return value / TicksPerMillimeter, true
	default:
		return 0, false
	}
}
