package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	analytics "able-iot-cloud/internal/analytics/domain"
)

// BasePath is the mount point for the metrics read API.
const BasePath = "/api/v1/metrics/"

// MetricsHandler serves the derived read models as JSON, plus the SSE
// stream and the export formats.
type MetricsHandler struct {
	reader analytics.Reader
	stream *Streamer
	logger *log.Logger
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(reader analytics.Reader, stream *Streamer, logger *log.Logger) (*MetricsHandler, error) {
	if reader == nil {
		return nil, errors.New("metrics handler: nil reader")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &MetricsHandler{reader: reader, stream: stream, logger: logger}, nil
}

// ServeHTTP dispatches GET /api/v1/metrics/*.
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case BasePath + "avg-extension-mm":
		h.respond(w, r, func(ctx context.Context) (any, error) { return h.reader.AvgExtension(ctx) })
	case BasePath + "extension-vs-retraction":
		h.respond(w, r, func(ctx context.Context) (any, error) { return h.reader.ExtensionVsRetraction(ctx) })
	case BasePath + "battery-summary":
		h.respond(w, r, func(ctx context.Context) (any, error) { return h.reader.BatterySummary(ctx) })
	case BasePath + "platform-height":
		h.respond(w, r, func(ctx context.Context) (any, error) { return h.reader.PlatformHeight(ctx) })
	case BasePath + "side-switches":
		h.respond(w, r, func(ctx context.Context) (any, error) { return h.reader.SideSwitches(ctx) })
	case BasePath + "unified":
		deviceID := queryInt64(r, "device_id")
		limit := int(queryInt64(r, "limit"))
		h.respond(w, r, func(ctx context.Context) (any, error) {
			return h.reader.UnifiedReadings(ctx, deviceID, limit)
		})
	case BasePath + "raw-status":
		limit := int(queryInt64(r, "limit"))
		h.respond(w, r, func(ctx context.Context) (any, error) { return h.reader.RawStatus(ctx, limit) })
	case BasePath + "stream":
		if h.stream == nil {
			http.Error(w, "stream not ready", http.StatusServiceUnavailable)
			return
		}
		h.stream.ServeHTTP(w, r)
	case BasePath + "export.csv":
		h.export(w, r, "csv")
	case BasePath + "export.xlsx":
		h.export(w, r, "xlsx")
	case BasePath + "export.pdf":
		h.export(w, r, "pdf")
	default:
		http.NotFound(w, r)
	}
}

func (h *MetricsHandler) respond(w http.ResponseWriter, r *http.Request, load func(context.Context) (any, error)) {
	payload, err := load(r.Context())
	if err != nil {
		h.logger.Printf("metrics query error: %v", err)
		http.Error(w, "query error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *MetricsHandler) export(w http.ResponseWriter, r *http.Request, format string) {
	snapshot, err := LoadSnapshot(r.Context(), h.reader)
	if err != nil {
		h.logger.Printf("metrics export error: %v", err)
		http.Error(w, "query error", http.StatusInternalServerError)
		return
	}

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="metrics.csv"`)
		if err := WriteSnapshotCSV(w, snapshot); err != nil {
			h.logger.Printf("metrics csv error: %v", err)
		}
	case "xlsx":
		data, err := BuildSnapshotXLSX(snapshot)
		if err != nil {
			h.logger.Printf("metrics xlsx error: %v", err)
			http.Error(w, "export error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="metrics.xlsx"`)
		_, _ = w.Write(data)
	case "pdf":
		data, err := BuildSnapshotPDF(snapshot)
		if err != nil {
			h.logger.Printf("metrics pdf error: %v", err)
			http.Error(w, "export error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="metrics.pdf"`)
		_, _ = w.Write(data)
	}
}

// LoadSnapshot loads the four metric read models in one pass.
func LoadSnapshot(ctx context.Context, reader analytics.Reader) (analytics.Snapshot, error) {
	var (
		snapshot analytics.Snapshot
		err      error
	)
	if snapshot.Avg, err = reader.AvgExtension(ctx); err != nil {
		return snapshot, err
	}
	if snapshot.ExtRet, err = reader.ExtensionVsRetraction(ctx); err != nil {
		return snapshot, err
	}
	if snapshot.Battery, err = reader.BatterySummary(ctx); err != nil {
		return snapshot, err
	}
	if snapshot.Height, err = reader.PlatformHeight(ctx); err != nil {
		return snapshot, err
	}
	return snapshot, nil
}

func queryInt64(r *http.Request, key string) int64 {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
