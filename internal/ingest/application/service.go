package application

import (
	"context"
	"errors"
	"log"
	"time"

	ingest "able-iot-cloud/internal/ingest/domain"
	"able-iot-cloud/internal/observability/metrics"
)

// Terminal markers for raw records that legitimately produce no fact. The
// quarantine stores them so every raw record ends with exactly one of
// fact or recorded outcome; the caller still sees a success.
const (
	// quarantineReasonDuplicate marks a raw record whose fact insert was
	// suppressed by an idempotency guard.
	quarantineReasonDuplicate = "duplicate"
	// quarantineReasonProvisioned marks a startup raw record whose outcome
	// is a device row, not a fact.
	quarantineReasonProvisioned = "provisioned"
)

// Service is the ingestion write path: append raw, validate, resolve the
// device, persist the fact or quarantine the failure reason.
type Service struct {
	raw        ingest.RawLedger
	quarantine ingest.Quarantine
	devices    ingest.DeviceRepository
	types      ingest.RecordTypeRepository
	facts      ingest.FactWriter
	secret     []byte
	logger     *log.Logger
}

// NewService constructs the ingest service.
func NewService(
	raw ingest.RawLedger,
	quarantine ingest.Quarantine,
	devices ingest.DeviceRepository,
	types ingest.RecordTypeRepository,
	facts ingest.FactWriter,
	secret []byte,
	logger *log.Logger,
) (*Service, error) {
	if raw == nil || quarantine == nil || devices == nil || types == nil || facts == nil {
		return nil, errors.New("ingest service: nil repository")
	}
	if len(secret) == 0 {
		return nil, errors.New("ingest service: empty provision secret")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		raw:        raw,
		quarantine: quarantine,
		devices:    devices,
		types:      types,
		facts:      facts,
		secret:     secret,
		logger:     logger,
	}, nil
}

// IngestOne processes a single payload. The raw ledger append
// happens-before any validation decision. Input-derived failures are
// quarantined and reported as StatusInvalid; only storage failures return
// a non-nil error.
func (s *Service) IngestOne(ctx context.Context, payload []byte) (ingest.Result, error) {
	start := time.Now()
	result, err := s.ingestOne(ctx, payload)
	if err != nil {
		metrics.ObserveIngest(metrics.IngestResultError, time.Since(start))
		return result, err
	}
	if result.Status == ingest.StatusOK && result.ProcessedID == nil {
		metrics.ObserveIngest(metrics.IngestResultDuplicate, time.Since(start))
	} else {
		metrics.ObserveIngest(result.Status, time.Since(start))
	}
	return result, nil
}

func (s *Service) ingestOne(ctx context.Context, payload []byte) (ingest.Result, error) {
	rawID, err := s.raw.Append(ctx, payload)
	if err != nil {
		return ingest.Result{}, err
	}

	event, err := ingest.ParseEvent(payload)
	if err != nil {
		return s.reject(ctx, rawID, err)
	}

	switch evt := event.(type) {
	case ingest.StartupEvent:
		return s.handleStartup(ctx, rawID, evt)
	case ingest.TelemetryEvent:
		return s.handleTelemetry(ctx, rawID, evt)
	default:
		return s.reject(ctx, rawID, &ingest.ValidationError{Reason: "validation_error: unknown event shape"})
	}
}

func (s *Service) handleStartup(ctx context.Context, rawID int64, evt ingest.StartupEvent) (ingest.Result, error) {
	if !VerifyToken(s.secret, evt.Serial, evt.ProvisionToken) {
		return s.reject(ctx, rawID, &ingest.AuthError{Reason: "startup_auth_error: invalid provision_token"})
	}

	deviceID, err := s.devices.GetOrCreateBySerial(ctx, evt.Serial)
	if err != nil {
		return ingest.Result{RawID: rawID}, err
	}
	if evt.Firmware != "" {
		if err := s.types.SetFirmware(ctx, ingest.EventTypeStartup, evt.Firmware); err != nil {
			return ingest.Result{RawID: rawID}, err
		}
	}
	// A startup produces a device row, not a fact; the raw row still needs
	// its terminal outcome on record.
	if err := s.quarantine.Record(ctx, rawID, quarantineReasonProvisioned); err != nil {
		return ingest.Result{RawID: rawID}, err
	}
	return ingest.Result{RawID: rawID, ProcessedID: &deviceID, Status: ingest.StatusOK}, nil
}

func (s *Service) handleTelemetry(ctx context.Context, rawID int64, evt ingest.TelemetryEvent) (ingest.Result, error) {
	if evt.DeviceID <= 0 {
		return s.reject(ctx, rawID, &ingest.ResolutionError{Reason: "resolution_error: device_id must be positive"})
	}

	typeID, err := s.types.IDByName(ctx, evt.EventType)
	if err != nil {
		return ingest.Result{RawID: rawID}, err
	}
	if err := s.devices.EnsureByID(ctx, evt.DeviceID); err != nil {
		return ingest.Result{RawID: rawID}, err
	}

	factID, created, err := s.facts.Insert(ctx, ingest.Fact{
		DeviceID:   evt.DeviceID,
		RawID:      rawID,
		RecordTime: evt.Timestamp,
		TypeID:     typeID,
		Value:      evt.Value,
	})
	if err != nil {
		return ingest.Result{RawID: rawID}, err
	}
	if !created {
		// Replay of a logical event already on record. The raw row still
		// needs its terminal explanation.
		if err := s.quarantine.Record(ctx, rawID, quarantineReasonDuplicate); err != nil {
			return ingest.Result{RawID: rawID}, err
		}
		return ingest.Result{RawID: rawID, Status: ingest.StatusOK}, nil
	}
	return ingest.Result{RawID: rawID, ProcessedID: &factID, Status: ingest.StatusOK}, nil
}

// reject quarantines an input-derived failure and reports StatusInvalid.
func (s *Service) reject(ctx context.Context, rawID int64, cause error) (ingest.Result, error) {
	reason := cause.Error()
	metrics.IncQuarantine(reasonCategory(cause))
	if err := s.quarantine.Record(ctx, rawID, reason); err != nil {
		return ingest.Result{RawID: rawID}, err
	}
	s.logger.Printf("ingest: raw=%d rejected: %s", rawID, reason)
	return ingest.Result{RawID: rawID, Status: ingest.StatusInvalid}, nil
}

// IngestMany processes payloads independently; one element's failure never
// blocks its siblings. A storage failure aborts the batch and returns the
// results accumulated so far.
func (s *Service) IngestMany(ctx context.Context, payloads [][]byte) ([]ingest.Result, error) {
	results := make([]ingest.Result, 0, len(payloads))
	for _, payload := range payloads {
		result, err := s.IngestOne(ctx, payload)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func reasonCategory(cause error) string {
	var validation *ingest.ValidationError
	var auth *ingest.AuthError
	var resolution *ingest.ResolutionError
	switch {
	case errors.As(cause, &auth):
		return "auth"
	case errors.As(cause, &resolution):
		return "resolution"
	case errors.As(cause, &validation):
		return "validation"
	default:
		return "unknown"
	}
}
