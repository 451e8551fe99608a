package unify

import "testing"

func TestExtensionMM(t *testing.T) {
	cases := []struct {
		name       string
		recordType string
		value      float64
		wantMM     float64
		wantOK     bool
	}{
		{"ticks convert", TypeExtensionTicks, 100, 5, true},
		{"ticks zero", TypeExtensionTicks, 0, 0, true},
		{"ticks negative", TypeExtensionTicks, -40, -2, true},
		{"mm passthrough", TypeExtensionMM, 37.5, 37.5, true},
		{"battery not extension", "battery_charge", 80, 0, false},
		{"unknown type", "vibration_rms", 1.5, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mm, ok := ExtensionMM(tc.recordType, tc.value)
			if ok != tc.wantOK {
				t.Fatalf("ok mismatch: got %v want %v", ok, tc.wantOK)
			}
			if mm != tc.wantMM {
				t.Fatalf("mm mismatch: got %v want %v", mm, tc.wantMM)
			}
		})
	}
}

// The same physical reading reported in either unit must unify to the same
// millimeter value.
func TestExtensionMMUnitEquivalence(t *testing.T) {
	for _, ticks := range []float64{1, 20, 100, 2500, 60000} {
		fromTicks, _ := ExtensionMM(TypeExtensionTicks, ticks)
		fromMM, _ := ExtensionMM(TypeExtensionMM, ticks/TicksPerMillimeter)
		if fromTicks != fromMM {
			t.Fatalf("ticks=%v: got %v from ticks, %v from mm", ticks, fromTicks, fromMM)
		}
	}
}
