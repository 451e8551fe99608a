package integration_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"testing"

	"able-iot-cloud/internal/ingest/application"
	ingest "able-iot-cloud/internal/ingest/domain"
	ingestpostgres "able-iot-cloud/internal/ingest/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := ingestpostgres.EnsureSchema(ctx, db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		"TRUNCATE raw_record, ingest_error, processed_record, device, record_type RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}

func newIngestService(t *testing.T, db *sql.DB) *application.Service {
	t.Helper()
	service, err := application.NewService(
		ingestpostgres.NewRawLedger(db),
		ingestpostgres.NewQuarantine(db),
		ingestpostgres.NewDeviceRepository(db),
		ingestpostgres.NewRecordTypeRepository(db),
		ingestpostgres.NewFactRepository(db),
		[]byte("ABLE-SECRET"),
		nil,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func mustMarshal(t *testing.T, doc map[string]any) []byte {
	t.Helper()
	payload, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return payload
}

func TestIngestWritePath_Postgres(t *testing.T) {
	db := openTestDB(t)
	service := newIngestService(t, db)
	ctx := context.Background()

	result, err := service.IngestOne(ctx, mustMarshal(t, map[string]any{
		"device_id":  42,
		"event_type": "platform_extension_ticks",
		"value":      100,
		"timestamp":  1756300000,
	}))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.Status != ingest.StatusOK || result.ProcessedID == nil {
		t.Fatalf("expected stored fact, got %+v", result)
	}

	var (
		value    float64
		typeName string
		devName  string
	)
	err = db.QueryRowContext(ctx, `
SELECT p.value, rt.name, d.name
FROM processed_record p
JOIN record_type rt ON rt.id = p.type
JOIN device d ON d.id = p.device_id
WHERE p.id = $1`, *result.ProcessedID).Scan(&value, &typeName, &devName)
	if err != nil {
		t.Fatalf("read back fact: %v", err)
	}
	if value != 100 {
		t.Fatalf("stored value must stay in reported units, got %v", value)
	}
	if typeName != "platform_extension_ticks" {
		t.Fatalf("type mismatch: got %s", typeName)
	}
	if devName != "device-42" {
		t.Fatalf("expected placeholder device name, got %s", devName)
	}
}

func TestIngestIdempotency_Postgres(t *testing.T) {
	db := openTestDB(t)
	service := newIngestService(t, db)
	ctx := context.Background()

	payload := mustMarshal(t, map[string]any{
		"device_id":  7,
		"event_type": "platform_height_mm",
		"value":      120,
		"timestamp":  1756300000,
	})

	first, err := service.IngestOne(ctx, payload)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	second, err := service.IngestOne(ctx, payload)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if first.ProcessedID == nil {
		t.Fatal("first ingest must store a fact")
	}
	if second.Status != ingest.StatusOK || second.ProcessedID != nil {
		t.Fatalf("duplicate must be ok without a fresh fact id, got %+v", second)
	}

	var facts int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM processed_record").Scan(&facts); err != nil {
		t.Fatalf("count facts: %v", err)
	}
	if facts != 1 {
		t.Fatalf("expected 1 fact, got %d", facts)
	}

	var reason string
	if err := db.QueryRowContext(ctx,
		"SELECT error FROM ingest_error WHERE raw_data_id = $1", second.RawID).Scan(&reason); err != nil {
		t.Fatalf("read duplicate marker: %v", err)
	}
	if reason != "duplicate" {
		t.Fatalf("expected duplicate marker, got %q", reason)
	}
}

func TestIngestQuarantine_Postgres(t *testing.T) {
	db := openTestDB(t)
	service := newIngestService(t, db)
	ctx := context.Background()

	payload := []byte(`{"device_id": 3, "event_type": "battery_charge", "value": 50}`)
	result, err := service.IngestOne(ctx, payload)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.Status != ingest.StatusInvalid {
		t.Fatalf("expected invalid, got %s", result.Status)
	}

	var stored string
	if err := db.QueryRowContext(ctx,
		"SELECT raw_message::text FROM raw_record WHERE id = $1", result.RawID).Scan(&stored); err != nil {
		t.Fatalf("read raw row: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(stored), &doc); err != nil {
		t.Fatalf("raw row is not the original document: %v", err)
	}
	if doc["value"] != float64(50) {
		t.Fatalf("raw payload mismatch: %v", doc)
	}

	var reason string
	if err := db.QueryRowContext(ctx,
		"SELECT error FROM ingest_error WHERE raw_data_id = $1", result.RawID).Scan(&reason); err != nil {
		t.Fatalf("read quarantine reason: %v", err)
	}
	if reason != "validation_error: timestamp is required" {
		t.Fatalf("reason mismatch: got %q", reason)
	}

	var facts int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM processed_record").Scan(&facts); err != nil {
		t.Fatalf("count facts: %v", err)
	}
	if facts != 0 {
		t.Fatalf("expected no facts, got %d", facts)
	}
}

func TestIngestProvisioning_Postgres(t *testing.T) {
	db := openTestDB(t)
	service := newIngestService(t, db)
	ctx := context.Background()

	serial := "AI-ABCDE1"
	token := application.SignSerial([]byte("ABLE-SECRET"), serial)

	startup, err := service.IngestOne(ctx, mustMarshal(t, map[string]any{
		"event_type":      "device_startup",
		"serial":          serial,
		"provision_token": token,
		"firmware":        "1.2.0",
		"timestamp":       1756300000,
	}))
	if err != nil {
		t.Fatalf("ingest startup: %v", err)
	}
	if startup.Status != ingest.StatusOK || startup.ProcessedID == nil {
		t.Fatalf("expected provisioned device, got %+v", startup)
	}
	deviceID := *startup.ProcessedID

	var name string
	if err := db.QueryRowContext(ctx, "SELECT name FROM device WHERE id = $1", deviceID).Scan(&name); err != nil {
		t.Fatalf("read device: %v", err)
	}
	if name != serial {
		t.Fatalf("expected serial as device name, got %q", name)
	}

	var firmware string
	err = db.QueryRowContext(ctx,
		"SELECT firmware_version FROM record_type WHERE name = $1", ingest.EventTypeStartup).Scan(&firmware)
	if err != nil {
		t.Fatalf("read firmware: %v", err)
	}
	if firmware != "1.2.0" {
		t.Fatalf("firmware mismatch: got %q", firmware)
	}

	// A placeholder id insert must not collide with the provisioning
	// sequence afterwards.
	if _, err := service.IngestOne(ctx, mustMarshal(t, map[string]any{
		"device_id":  deviceID + 50,
		"event_type": "battery_charge",
		"value":      80,
		"timestamp":  1756300100,
	})); err != nil {
		t.Fatalf("ingest placeholder telemetry: %v", err)
	}
	repeat, err := service.IngestOne(ctx, mustMarshal(t, map[string]any{
		"event_type":      "device_startup",
		"serial":          "AI-ABCDE2",
		"provision_token": application.SignSerial([]byte("ABLE-SECRET"), "AI-ABCDE2"),
		"timestamp":       1756300200,
	}))
	if err != nil {
		t.Fatalf("ingest second startup: %v", err)
	}
	if *repeat.ProcessedID <= deviceID+50 {
		t.Fatalf("sequence must jump past placeholder ids, got %d", *repeat.ProcessedID)
	}
}

func TestIngestEveryRawResolved_Postgres(t *testing.T) {
	db := openTestDB(t)
	service := newIngestService(t, db)
	ctx := context.Background()

	payloads := [][]byte{
		mustMarshal(t, map[string]any{"device_id": 1, "event_type": "battery_charge", "value": 50, "timestamp": 1756300000}),
		[]byte(`{}`),
		mustMarshal(t, map[string]any{
			"event_type":      "device_startup",
			"serial":          "AI-ABCDE9",
			"provision_token": application.SignSerial([]byte("ABLE-SECRET"), "AI-ABCDE9"),
			"timestamp":       1756300002,
		}),
		[]byte(`{"device_id": 2, "event_type": "battery_charge", "value": "high", "timestamp": 1756300001}`),
		mustMarshal(t, map[string]any{"device_id": 1, "event_type": "battery_charge", "value": 50, "timestamp": 1756300000}),
	}
	if _, err := service.IngestMany(ctx, payloads); err != nil {
		t.Fatalf("ingest batch: %v", err)
	}

	var unresolved int
	err := db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM raw_record r
LEFT JOIN processed_record p ON p.raw_data_id = r.id
LEFT JOIN ingest_error e ON e.raw_data_id = r.id
WHERE p.id IS NULL AND e.raw_data_id IS NULL`).Scan(&unresolved)
	if err != nil {
		t.Fatalf("count unresolved: %v", err)
	}
	if unresolved != 0 {
		t.Fatalf("every raw row must end with a fact or an error, %d unresolved", unresolved)
	}
}
