package http

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	analytics "able-iot-cloud/internal/analytics/domain"
)

// Streamer pushes the combined metrics snapshot to each connected client
// on a fixed interval over Server-Sent Events. Each client polls
// independently; there is no fan-out state to share.
type Streamer struct {
	reader   analytics.Reader
	interval time.Duration
	logger   *log.Logger
}

// NewStreamer constructs a metrics streamer.
func NewStreamer(reader analytics.Reader, interval time.Duration, logger *log.Logger) *Streamer {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Streamer{reader: reader, interval: interval, logger: logger}
}

// ServeHTTP handles GET /api/v1/metrics/stream.
func (s *Streamer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s == nil || s.reader == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	notify := r.Context().Done()
	for {
		snapshot, err := LoadSnapshot(r.Context(), s.reader)
		if err != nil {
			s.logger.Printf("metrics stream: %v", err)
			_, _ = w.Write([]byte("event: error\ndata: {\"error\":\"query error\"}\n\n"))
			flusher.Flush()
		} else {
			payload, err := json.Marshal(snapshot)
			if err == nil {
				_, _ = w.Write([]byte("data: "))
				_, _ = w.Write(payload)
				_, _ = w.Write([]byte("\n\n"))
				flusher.Flush()
			}
		}

		select {
		case <-ticker.C:
		case <-notify:
			return
		}
	}
}
