// Package memory holds an in-memory implementation of the ingest
// repositories, mirroring the Postgres semantics closely enough for the
// application-level tests: same idempotency keys, same last-error-wins
// quarantine.
package memory

import (
	"context"
	"fmt"
	"sync"

	ingest "able-iot-cloud/internal/ingest/domain"
)

// Store implements RawLedger, Quarantine, DeviceRepository,
// RecordTypeRepository and FactWriter over process memory.
type Store struct {
	mu sync.Mutex

	failWith error

	rawSeq   int64
	raws     map[int64][]byte
	errors   map[int64]string
	devSeq   int64
	bySerial map[string]int64
	devices  map[int64]string
	typeSeq  int64
	types    map[string]int64
	firmware map[string]string
	factSeq  int64
	byRaw    map[int64]int64
	byKey    map[string]int64
	facts    map[int64]ingest.Fact
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		raws:     make(map[int64][]byte),
		errors:   make(map[int64]string),
		bySerial: make(map[string]int64),
		devices:  make(map[int64]string),
		types:    make(map[string]int64),
		firmware: make(map[string]string),
		byRaw:    make(map[int64]int64),
		byKey:    make(map[string]int64),
		facts:    make(map[int64]ingest.Fact),
	}
}

// FailWith makes every subsequent operation return the given error,
// simulating a storage outage.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	s.failWith = err
	s.mu.Unlock()
}

func (s *Store) Append(_ context.Context, payload []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, &ingest.PersistenceError{Op: "raw ledger append", Err: s.failWith}
	}
	s.rawSeq++
	stored := make([]byte, len(payload))
	copy(stored, payload)
	s.raws[s.rawSeq] = stored
	return s.rawSeq, nil
}

func (s *Store) Record(_ context.Context, rawID int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return &ingest.PersistenceError{Op: "quarantine record", Err: s.failWith}
	}
	s.errors[rawID] = reason
	return nil
}

func (s *Store) GetOrCreateBySerial(_ context.Context, serial string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, &ingest.PersistenceError{Op: "device create by serial", Err: s.failWith}
	}
	if id, ok := s.bySerial[serial]; ok {
		return id, nil
	}
	s.devSeq++
	s.bySerial[serial] = s.devSeq
	s.devices[s.devSeq] = serial
	return s.devSeq, nil
}

func (s *Store) EnsureByID(_ context.Context, deviceID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return &ingest.PersistenceError{Op: "device ensure by id", Err: s.failWith}
	}
	if _, ok := s.devices[deviceID]; !ok {
		s.devices[deviceID] = fmt.Sprintf("device-%d", deviceID)
		if deviceID > s.devSeq {
			s.devSeq = deviceID
		}
	}
	return nil
}

func (s *Store) IDByName(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, &ingest.PersistenceError{Op: "record type resolve", Err: s.failWith}
	}
	if id, ok := s.types[name]; ok {
		return id, nil
	}
	s.typeSeq++
	s.types[name] = s.typeSeq
	return s.typeSeq, nil
}

func (s *Store) SetFirmware(_ context.Context, name, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return &ingest.PersistenceError{Op: "record type firmware", Err: s.failWith}
	}
	s.firmware[name] = version
	return nil
}

func (s *Store) Insert(_ context.Context, fact ingest.Fact) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, false, &ingest.PersistenceError{Op: "fact insert", Err: s.failWith}
	}
	if _, ok := s.byRaw[fact.RawID]; ok {
		return 0, false, nil
	}
	key := logicalKey(fact)
	if _, ok := s.byKey[key]; ok {
		return 0, false, nil
	}
	s.factSeq++
	s.byRaw[fact.RawID] = s.factSeq
	s.byKey[key] = s.factSeq
	s.facts[s.factSeq] = fact
	return s.factSeq, true, nil
}

func logicalKey(fact ingest.Fact) string {
	return fmt.Sprintf("%d|%d|%d|%v", fact.DeviceID, fact.TypeID, fact.RecordTime.UnixNano(), fact.Value)
}

// Inspection helpers for tests.

// RawPayload returns the stored payload for a raw id.
func (s *Store) RawPayload(rawID int64) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.raws[rawID]
	return payload, ok
}

// RawCount returns the number of ledger rows.
func (s *Store) RawCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.raws)
}

// ErrorReason returns the quarantined reason for a raw id.
func (s *Store) ErrorReason(rawID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reason, ok := s.errors[rawID]
	return reason, ok
}

// FactCount returns the number of stored facts.
func (s *Store) FactCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.facts)
}

// FactByRaw returns the fact derived from a raw id.
func (s *Store) FactByRaw(rawID int64) (ingest.Fact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byRaw[rawID]
	if !ok {
		return ingest.Fact{}, false
	}
	return s.facts[id], true
}

// DeviceName returns the stored name for a device id.
func (s *Store) DeviceName(deviceID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.devices[deviceID]
	return name, ok
}

// DeviceCount returns the number of device rows.
func (s *Store) DeviceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.devices)
}

// Firmware returns the firmware version recorded for a record type.
func (s *Store) Firmware(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	version, ok := s.firmware[name]
	return version, ok
}

// TypeName returns the name for a type id.
func (s *Store) TypeName(typeID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, id := range s.types {
		if id == typeID {
			return name, true
		}
	}
	return "", false
}

// UnresolvedRaws returns raw ids with neither a fact nor an error.
func (s *Store) UnresolvedRaws() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id := range s.raws {
		_, hasFact := s.byRaw[id]
		_, hasError := s.errors[id]
		if !hasFact && !hasError {
			ids = append(ids, id)
		}
	}
	return ids
}

var _ ingest.RawLedger = (*Store)(nil)
var _ ingest.Quarantine = (*Store)(nil)
var _ ingest.DeviceRepository = (*Store)(nil)
var _ ingest.RecordTypeRepository = (*Store)(nil)
var _ ingest.FactWriter = (*Store)(nil)
