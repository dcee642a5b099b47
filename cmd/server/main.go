package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/lychee-technology/facet"
	"github.com/lychee-technology/facet/internal"
	"go.uber.org/zap"
)

// Server is the HTTP front of the schema bridge.
type Server struct {
	bridge     *internal.Bridge
	dispatcher *internal.Dispatcher
	registry   *facet.SchemaRegistry
	maxBody    int64
	mux        *http.ServeMux
}

// NewServer creates a new Server instance
func NewServer(bridge *internal.Bridge, dispatcher *internal.Dispatcher, maxBody int64) *Server {
	if maxBody <= 0 {
		maxBody = 1024 * 1024
	}
	return &Server{
		bridge:     bridge,
		dispatcher: dispatcher,
		registry:   bridge.Registry(),
		maxBody:    maxBody,
		mux:        http.NewServeMux(),
	}
}

// RegisterRoutes registers all API routes
func (s *Server) RegisterRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/v1/schemas", s.handleListSchemas)
	s.mux.HandleFunc("/api/v1/schemas/", s.handleGetSchema)
	s.mux.HandleFunc("/api/v1/records/", s.handleCreateRecord)
	s.mux.HandleFunc("/api/v1/project/", s.handleProject)
	s.mux.HandleFunc("/api/v1/roots/", s.handleRoots)
	s.mux.HandleFunc("/api/v1/events", s.handleEvents)
}

// Start runs the HTTP server until a SIGINT/SIGTERM, then drains within the
// shutdown timeout.
func (s *Server) Start(cfg facet.ServerConfig) error {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.S().Infow("starting server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		zap.S().Infow("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

func main() {
	cfg := loadConfigFromEnv()

	logger := buildLogger(cfg.Logging)
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	if err := cfg.Validate(); err != nil {
		sugar.Fatalf("invalid configuration: %v", err)
	}

	ctx := context.Background()

	// Early reachability probes; load failures below are still authoritative.
	switch cfg.Sources.Mode {
	case "postgres":
		if err := internal.PostgresHealthCheck(ctx, cfg.Sources.Postgres, 0); err != nil {
			sugar.Warnf("schema database health check failed: %v", err)
		}
	case "s3":
		if err := internal.S3HealthCheck(ctx, cfg.Sources.S3, 0); err != nil {
			sugar.Warnf("s3 endpoint health check failed: %v", err)
		}
	}

	source, cleanup, err := buildSchemaSource(ctx, cfg)
	if err != nil {
		sugar.Fatalf("failed to build schema source: %v", err)
	}
	defer cleanup()

	registry := facet.NewSchemaRegistry()
	keys, err := internal.LoadIntoRegistry(ctx, source, registry)
	if err != nil {
		sugar.Fatalf("failed to load schemas: %v", err)
	}
	sugar.Infof("loaded %d schemas from %s", len(keys), source.Name())

	var mutationJournal internal.MutationJournal
	if cfg.Journal.Enabled {
		writer, closeJournal, err := openJournal(ctx, cfg.Journal)
		if err != nil {
			sugar.Fatalf("failed to open journal: %v", err)
		}
		defer closeJournal()
		mutationJournal = writer
	}

	bridge := internal.NewBridge(registry, mutationJournal)
	dispatcher := internal.NewBridgeDispatcher(bridge)

	server := NewServer(bridge, dispatcher, cfg.Server.MaxBodyBytes)
	server.RegisterRoutes()

	if err := server.Start(cfg.Server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		sugar.Fatalf("server error: %v", err)
	}
}

// loadConfigFromEnv starts from the defaults and applies environment
// overrides.
func loadConfigFromEnv() *facet.Config {
	cfg := facet.DefaultConfig()

	cfg.Server.Host = getEnv("HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.Development = getEnvBool("LOG_DEVELOPMENT", cfg.Logging.Development)

	cfg.Sources.Mode = getEnv("SCHEMA_SOURCE", cfg.Sources.Mode)
	cfg.Sources.Directory.Path = getEnv("SCHEMA_DIR", cfg.Sources.Directory.Path)

	cfg.Sources.Postgres.Host = getEnv("DB_HOST", cfg.Sources.Postgres.Host)
	cfg.Sources.Postgres.Port = getEnvInt("DB_PORT", cfg.Sources.Postgres.Port)
	cfg.Sources.Postgres.Database = getEnv("DB_NAME", cfg.Sources.Postgres.Database)
	cfg.Sources.Postgres.Username = getEnv("DB_USER", cfg.Sources.Postgres.Username)
	cfg.Sources.Postgres.Password = getEnv("DB_PASSWORD", cfg.Sources.Postgres.Password)
	cfg.Sources.Postgres.SSLMode = getEnv("DB_SSL_MODE", cfg.Sources.Postgres.SSLMode)
	cfg.Sources.Postgres.Table = getEnv("SCHEMA_TABLE", cfg.Sources.Postgres.Table)
	cfg.Sources.Postgres.MaxConnections = getEnvInt("DB_MAX_CONNECTIONS", cfg.Sources.Postgres.MaxConnections)
	cfg.Sources.Postgres.Timeout = time.Duration(getEnvInt("DB_TIMEOUT_SECONDS", int(cfg.Sources.Postgres.Timeout/time.Second))) * time.Second
	cfg.Sources.Postgres.UseIAM = getEnvBool("DB_USE_IAM", cfg.Sources.Postgres.UseIAM)
	cfg.Sources.Postgres.Region = getEnv("DB_REGION", cfg.Sources.Postgres.Region)

	cfg.Sources.S3.Region = getEnv("S3_REGION", cfg.Sources.S3.Region)
	cfg.Sources.S3.Bucket = getEnv("S3_BUCKET", cfg.Sources.S3.Bucket)
	cfg.Sources.S3.Prefix = getEnv("S3_PREFIX", cfg.Sources.S3.Prefix)
	cfg.Sources.S3.Endpoint = getEnv("S3_ENDPOINT", cfg.Sources.S3.Endpoint)

	cfg.Journal.Enabled = getEnvBool("JOURNAL_ENABLED", cfg.Journal.Enabled)
	// the journal shares the schema database unless overridden
	cfg.Journal.Postgres = cfg.Sources.Postgres
	cfg.Journal.Postgres.Table = getEnv("JOURNAL_TABLE", "change_journal")
	cfg.Journal.S3.Region = getEnv("JOURNAL_S3_REGION", cfg.Journal.S3.Region)
	cfg.Journal.S3.Bucket = getEnv("JOURNAL_S3_BUCKET", cfg.Journal.S3.Bucket)
	cfg.Journal.S3.Prefix = getEnv("JOURNAL_S3_PREFIX", cfg.Journal.S3.Prefix)
	cfg.Journal.S3.Endpoint = getEnv("JOURNAL_S3_ENDPOINT", cfg.Journal.S3.Endpoint)
	cfg.Journal.Flush.MinRecords = getEnvInt("JOURNAL_MIN_RECORDS", cfg.Journal.Flush.MinRecords)
	cfg.Journal.Flush.MaxAgeMs = int64(getEnvInt("JOURNAL_MAX_AGE_MS", int(cfg.Journal.Flush.MaxAgeMs)))
	cfg.Journal.Flush.BatchSize = getEnvInt("JOURNAL_BATCH_SIZE", cfg.Journal.Flush.BatchSize)
	cfg.Journal.DuckDBPath = getEnv("DUCKDB_PATH", cfg.Journal.DuckDBPath)
	cfg.Journal.DuckDBMemoryMB = getEnvInt("DUCKDB_MEMORY_MB", cfg.Journal.DuckDBMemoryMB)
	cfg.Journal.DuckDBThreads = getEnvInt("DUCKDB_THREADS", cfg.Journal.DuckDBThreads)

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
