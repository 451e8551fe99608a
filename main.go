package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	analyticshttp "able-iot-cloud/internal/analytics/interfaces/http"
	analyticspostgres "able-iot-cloud/internal/analytics/infrastructure/postgres"
	"able-iot-cloud/internal/ingest/application"
	ingestpostgres "able-iot-cloud/internal/ingest/infrastructure/postgres"
	ingesthttp "able-iot-cloud/internal/ingest/interfaces/http"
	"able-iot-cloud/internal/observability/metrics"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxOpenConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	ctx := context.Background()
	if err := ingestpostgres.EnsureSchema(ctx, db); err != nil {
		logger.Fatalf("schema error: %v", err)
	}
	if err := analyticspostgres.EnsureViews(ctx, db); err != nil {
		logger.Fatalf("views error: %v", err)
	}

	metrics.Init(db, logger)

	rawLedger := ingestpostgres.NewRawLedger(db)
	quarantine := ingestpostgres.NewQuarantine(db)
	deviceRepo := ingestpostgres.NewDeviceRepository(db)
	typeRepo := ingestpostgres.NewRecordTypeRepository(db)
	factRepo := ingestpostgres.NewFactRepository(db)

	ingestService, err := application.NewService(
		rawLedger, quarantine, deviceRepo, typeRepo, factRepo,
		[]byte(cfg.ProvisionSecret), logger,
	)
	if err != nil {
		logger.Fatalf("ingest service error: %v", err)
	}
	ingestHandler, err := ingesthttp.NewIngestHandler(ingestService, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}

	reader := analyticspostgres.NewQuery(db)
	streamer := analyticshttp.NewStreamer(reader, cfg.StreamInterval, logger)
	metricsHandler, err := analyticshttp.NewMetricsHandler(reader, streamer, logger)
	if err != nil {
		logger.Fatalf("metrics handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/ingest", ingestHandler)
	mux.Handle(analyticshttp.BasePath, metricsHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL     string        `yaml:"database_url"`
	HTTPAddr        string        `yaml:"http_addr"`
	ProvisionSecret string        `yaml:"provision_secret"`
	DBMaxOpenConns  int           `yaml:"db_max_open_conns"`
	StreamInterval  time.Duration `yaml:"stream_interval"`
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:     getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		ProvisionSecret: getenvDefault("PROVISION_SECRET", "ABLE-SECRET"),
		DBMaxOpenConns:  getenvIntDefault("DB_MAX_OPEN_CONNS", 10),
		StreamInterval:  getenvDuration("STREAM_INTERVAL", time.Second),
	}

	// Optional YAML overlay for deployments that prefer a file over env.
	if path := os.Getenv("INGEST_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("config read error: %v", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("config parse error: %v", err)
		}
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.ProvisionSecret == "" {
		log.Fatal("PROVISION_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush keeps the SSE stream working behind the logging wrapper.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
