package ingest

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseEventTelemetry(t *testing.T) {
	payload := []byte(`{"device_id": 42, "event_type": "platform_extension_ticks", "value": 100, "timestamp": 1756300000.5}`)

	event, err := ParseEvent(payload)
	if err != nil {
		t.Fatalf("parse telemetry: %v", err)
	}
	telemetry, ok := event.(TelemetryEvent)
	if !ok {
		t.Fatalf("expected TelemetryEvent, got %T", event)
	}
	if telemetry.DeviceID != 42 {
		t.Fatalf("device id mismatch: got %d", telemetry.DeviceID)
	}
	if telemetry.EventType != "platform_extension_ticks" {
		t.Fatalf("event type mismatch: got %s", telemetry.EventType)
	}
	if telemetry.Value != 100 {
		t.Fatalf("value mismatch: got %v", telemetry.Value)
	}
	want := time.Unix(1756300000, int64(500*time.Millisecond)).UTC()
	if !telemetry.Timestamp.Equal(want) {
		t.Fatalf("timestamp mismatch: got %s want %s", telemetry.Timestamp, want)
	}
}

func TestParseEventTimestampRFC3339(t *testing.T) {
	payload := []byte(`{"device_id": 7, "event_type": "battery_charge", "value": 88.5, "timestamp": "2026-08-27T10:15:00Z"}`)

	event, err := ParseEvent(payload)
	if err != nil {
		t.Fatalf("parse telemetry: %v", err)
	}
	telemetry := event.(TelemetryEvent)
	want := time.Date(2026, 8, 27, 10, 15, 0, 0, time.UTC)
	if !telemetry.Timestamp.Equal(want) {
		t.Fatalf("timestamp mismatch: got %s want %s", telemetry.Timestamp, want)
	}
}

func TestParseEventQuotedDeviceID(t *testing.T) {
	payload := []byte(`{"device_id": "42", "event_type": "platform_height_mm", "value": 12, "timestamp": 1756300000}`)

	event, err := ParseEvent(payload)
	if err != nil {
		t.Fatalf("parse telemetry: %v", err)
	}
	if got := event.(TelemetryEvent).DeviceID; got != 42 {
		t.Fatalf("device id mismatch: got %d", got)
	}
}

func TestParseEventStartup(t *testing.T) {
	payload := []byte(`{"event_type": "device_startup", "serial": "AI-ABCDE1", "provision_token": "deadbeef", "firmware": "1.2.0", "timestamp": 1756300000}`)

	event, err := ParseEvent(payload)
	if err != nil {
		t.Fatalf("parse startup: %v", err)
	}
	startup, ok := event.(StartupEvent)
	if !ok {
		t.Fatalf("expected StartupEvent, got %T", event)
	}
	if startup.Serial != "AI-ABCDE1" {
		t.Fatalf("serial mismatch: got %s", startup.Serial)
	}
	if startup.ProvisionToken != "deadbeef" {
		t.Fatalf("token mismatch: got %s", startup.ProvisionToken)
	}
	if startup.Firmware != "1.2.0" {
		t.Fatalf("firmware mismatch: got %s", startup.Firmware)
	}
}

func TestParseEventStartupFirmwareOptional(t *testing.T) {
	payload := []byte(`{"event_type": "device_startup", "serial": "AI-000001", "provision_token": "deadbeef", "timestamp": 1756300000}`)

	event, err := ParseEvent(payload)
	if err != nil {
		t.Fatalf("parse startup: %v", err)
	}
	if fw := event.(StartupEvent).Firmware; fw != "" {
		t.Fatalf("expected empty firmware, got %q", fw)
	}
}

func TestParseEventRejections(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		reason  string
	}{
		{"empty object", `{}`, "validation_error: event_type is required"},
		{"device id only", `{"device_id": 3}`, "validation_error: event_type is required"},
		{"missing device id", `{"event_type": "platform_extension_mm", "value": 5, "timestamp": 1756300000}`, "validation_error: device_id is required"},
		{"string value", `{"device_id": 3, "event_type": "battery_charge", "value": "high", "timestamp": 1756300000}`, "validation_error: value must be a number"},
		{"missing value", `{"device_id": 3, "event_type": "battery_charge", "timestamp": 1756300000}`, "validation_error: value must be a number"},
		{"missing timestamp", `{"device_id": 3, "event_type": "battery_charge", "value": 50}`, "validation_error: timestamp is required"},
		{"fractional device id", `{"device_id": 3.5, "event_type": "battery_charge", "value": 50, "timestamp": 1756300000}`, "validation_error: device_id must be an integer"},
		{"non numeric device id", `{"device_id": "abc", "event_type": "battery_charge", "value": 50, "timestamp": 1756300000}`, "validation_error: device_id must be numeric"},
		{"bad timestamp string", `{"device_id": 3, "event_type": "battery_charge", "value": 50, "timestamp": "yesterday"}`, `validation_error: timestamp is not RFC 3339: "yesterday"`},
		{"not an object", `[1, 2, 3]`, "validation_error: payload is not a JSON object"},
		{"json null", `null`, "validation_error: payload is not a JSON object"},
		{"non string event type", `{"device_id": 3, "event_type": 7, "value": 50, "timestamp": 1756300000}`, "validation_error: event_type must be a string"},
		{"startup missing serial", `{"event_type": "device_startup", "provision_token": "deadbeef", "timestamp": 1756300000}`, "startup_validation_error: serial is required"},
		{"startup missing token", `{"event_type": "device_startup", "serial": "AI-000001", "timestamp": 1756300000}`, "startup_validation_error: provision_token is required"},
		{"startup non string firmware", `{"event_type": "device_startup", "serial": "AI-000001", "provision_token": "deadbeef", "firmware": 2, "timestamp": 1756300000}`, "startup_validation_error: firmware must be a string"},
		{"startup missing timestamp", `{"event_type": "device_startup", "serial": "AI-000001", "provision_token": "deadbeef"}`, "startup_validation_error: timestamp is required"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseEvent([]byte(tc.payload))
			if err == nil {
				t.Fatalf("expected rejection for %s", tc.payload)
			}
			var validation *ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected ValidationError, got %T: %v", err, err)
			}
			if err.Error() != tc.reason {
				t.Fatalf("reason mismatch: got %q want %q", err.Error(), tc.reason)
			}
		})
	}
}

func TestParseEventUnknownTypeAccepted(t *testing.T) {
	// Unknown telemetry event types are structural non-errors; the type
	// registry grows on first sight.
	payload := []byte(`{"device_id": 9, "event_type": "vibration_rms", "value": 0.2, "timestamp": 1756300000}`)

	event, err := ParseEvent(payload)
	if err != nil {
		t.Fatalf("parse telemetry: %v", err)
	}
	if got := event.(TelemetryEvent).EventType; got != "vibration_rms" {
		t.Fatalf("event type mismatch: got %s", got)
	}
}

func TestValidationReasonPrefixes(t *testing.T) {
	_, err := ParseEvent([]byte(`{"event_type": "device_startup", "timestamp": 1756300000}`))
	if err == nil || !strings.HasPrefix(err.Error(), "startup_validation_error:") {
		t.Fatalf("expected startup_validation_error prefix, got %v", err)
	}
	_, err = ParseEvent([]byte(`{"device_id": 1}`))
	if err == nil || !strings.HasPrefix(err.Error(), "validation_error:") {
		t.Fatalf("expected validation_error prefix, got %v", err)
	}
}
