package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	ingest "able-iot-cloud/internal/ingest/domain"
)

// Ingestor is the write path consumed by this binding.
type Ingestor interface {
	IngestOne(ctx context.Context, payload []byte) (ingest.Result, error)
	IngestMany(ctx context.Context, payloads [][]byte) ([]ingest.Result, error)
}

// IngestHandler exposes POST /ingest. The body is one JSON document or an
// array of documents; the response is always an array with one element per
// input document.
type IngestHandler struct {
	service Ingestor
	logger  *log.Logger
}

// NewIngestHandler constructs an ingest handler.
func NewIngestHandler(service Ingestor, logger *log.Logger) (*IngestHandler, error) {
	if service == nil {
		return nil, errors.New("ingest handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestHandler{service: service, logger: logger}, nil
}

// ServeHTTP ingests telemetry and startup events.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("ingest: read body error: %v", err)
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	results, err := h.ingest(r.Context(), body)
	if err != nil {
		// A storage failure means the system, not the input, is
		// unhealthy; nothing is quarantined.
		h.logger.Printf("ingest: storage error: %v", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(results)
}

func (h *IngestHandler) ingest(ctx context.Context, body []byte) ([]ingest.Result, error) {
	if !json.Valid(body) {
		// Not JSON at all. The ledger still gets the bytes, wrapped so
		// they survive as a queryable document.
		wrapped, err := json.Marshal(map[string]string{"_raw": string(body)})
		if err != nil {
			return nil, err
		}
		result, err := h.service.IngestOne(ctx, wrapped)
		if err != nil {
			return nil, err
		}
		return []ingest.Result{result}, nil
	}

	// Only a top-level array is a batch. Anything else, including a JSON
	// null, is one document and must leave one raw row.
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(body, &batch); err == nil {
			payloads := make([][]byte, len(batch))
			for i, element := range batch {
				payloads[i] = element
			}
			return h.service.IngestMany(ctx, payloads)
		}
	}

	result, err := h.service.IngestOne(ctx, body)
	if err != nil {
		return nil, err
	}
	return []ingest.Result{result}, nil
}
