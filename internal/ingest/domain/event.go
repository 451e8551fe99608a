package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// EventTypeStartup is the discriminant value that routes a payload to the
// provisioning path. Every other event_type is telemetry.
const EventTypeStartup = "device_startup"

// Event is a successfully classified ingest payload: either a
// TelemetryEvent or a StartupEvent.
type Event interface {
	isEvent()
}

// TelemetryEvent is a single measurement reported by a device.
type TelemetryEvent struct {
	DeviceID  int64
	EventType string
	Value     float64
	Timestamp time.Time
}

func (TelemetryEvent) isEvent() {}

// StartupEvent announces a device and proves its identity with a
// provisioning token.
type StartupEvent struct {
	Serial         string
	ProvisionToken string
	Firmware       string
	Timestamp      time.Time
}

func (StartupEvent) isEvent() {}

// ParseEvent classifies and type-checks a JSON payload. It performs only
// structural validation: required fields present and correctly typed,
// timestamp parseable. Value ranges are not checked and unknown telemetry
// event types are accepted; they become record_type rows on first sight.
func ParseEvent(raw []byte) (Event, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return nil, &ValidationError{Reason: "validation_error: payload is not a JSON object"}
	}

	eventType, ok := doc["event_type"].(string)
	if doc["event_type"] != nil && !ok {
		return nil, &ValidationError{Reason: "validation_error: event_type must be a string"}
	}
	if eventType == EventTypeStartup {
		return parseStartup(doc)
	}
	return parseTelemetry(doc, eventType)
}

func parseStartup(doc map[string]any) (Event, error) {
	serial, ok := doc["serial"].(string)
	if !ok || serial == "" {
		return nil, &ValidationError{Reason: "startup_validation_error: serial is required"}
	}
	token, ok := doc["provision_token"].(string)
	if !ok || token == "" {
		return nil, &ValidationError{Reason: "startup_validation_error: provision_token is required"}
	}
	firmware := ""
	if fw, present := doc["firmware"]; present && fw != nil {
		firmware, ok = fw.(string)
		if !ok {
			return nil, &ValidationError{Reason: "startup_validation_error: firmware must be a string"}
		}
	}
	ts, err := parseTimestamp(doc["timestamp"])
	if err != nil {
		return nil, &ValidationError{Reason: "startup_validation_error: " + err.Error()}
	}
	return StartupEvent{Serial: serial, ProvisionToken: token, Firmware: firmware, Timestamp: ts}, nil
}

func parseTelemetry(doc map[string]any, eventType string) (Event, error) {
	if eventType == "" {
		return nil, &ValidationError{Reason: "validation_error: event_type is required"}
	}
	deviceID, err := parseDeviceID(doc["device_id"])
	if err != nil {
		return nil, &ValidationError{Reason: "validation_error: " + err.Error()}
	}
	value, ok := doc["value"].(float64)
	if !ok {
		return nil, &ValidationError{Reason: "validation_error: value must be a number"}
	}
	ts, err := parseTimestamp(doc["timestamp"])
	if err != nil {
		return nil, &ValidationError{Reason: "validation_error: " + err.Error()}
	}
	return TelemetryEvent{DeviceID: deviceID, EventType: eventType, Value: value, Timestamp: ts}, nil
}

// parseDeviceID accepts a JSON number or a numeric string. Legacy devices
// report a bare integer; some gateways forward it quoted.
func parseDeviceID(field any) (int64, error) {
	switch v := field.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("device_id must be an integer")
		}
		return int64(v), nil
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("device_id must be numeric")
		}
		return id, nil
	case nil:
		return 0, fmt.Errorf("device_id is required")
	default:
		return 0, fmt.Errorf("device_id must be numeric")
	}
}

// parseTimestamp accepts epoch seconds (the format the field devices emit,
// possibly fractional) or an RFC 3339 string.
func parseTimestamp(field any) (time.Time, error) {
	switch v := field.(type) {
	case float64:
		sec, frac := math.Modf(v)
		return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC(), nil
	case string:
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp is not RFC 3339: %q", v)
		}
		return ts.UTC(), nil
	case nil:
		return time.Time{}, fmt.Errorf("timestamp is required")
	default:
		return time.Time{}, fmt.Errorf("timestamp must be epoch seconds or RFC 3339")
	}
}
