package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/lib/pq"
	"github.com/lychee-technology/facet"
	"github.com/lychee-technology/facet/internal"
	"go.uber.org/zap"
)

// Config carries everything the journal writer and flusher need, flattened
// so a single value can be handed to a one-shot CLI run.
type Config struct {
	PGHost     string
	PGPort     int
	PGUser     string
	PGPassword string
	PGDB       string
	PGSSLMode  string
	PGUseIAM   bool
	Table      string

	S3Bucket   string
	S3Prefix   string
	S3Region   string
	S3Endpoint string

	DuckDBPath     string
	DuckDBMemoryMB int
	DuckDBThreads  int

	MinRecords int
	MaxAgeMs   int64
	BatchSize  int
}

// ConfigFrom flattens the service configuration into a journal Config.
func ConfigFrom(jc facet.JournalConfig) Config {
	return Config{
		PGHost:     jc.Postgres.Host,
		PGPort:     jc.Postgres.Port,
		PGUser:     jc.Postgres.Username,
		PGPassword: jc.Postgres.Password,
		PGDB:       jc.Postgres.Database,
		PGSSLMode:  jc.Postgres.SSLMode,
		PGUseIAM:   jc.Postgres.UseIAM,
		Table:      jc.Postgres.Table,

		S3Bucket:   jc.S3.Bucket,
		S3Prefix:   jc.S3.Prefix,
		S3Region:   jc.S3.Region,
		S3Endpoint: jc.S3.Endpoint,

		DuckDBPath:     jc.DuckDBPath,
		DuckDBMemoryMB: jc.DuckDBMemoryMB,
		DuckDBThreads:  jc.DuckDBThreads,

		MinRecords: jc.Flush.MinRecords,
		MaxAgeMs:   jc.Flush.MaxAgeMs,
		BatchSize:  jc.Flush.BatchSize,
	}
}

// DDL returns the statements that create the journal table and its
// unflushed-row index.
func DDL(table string) []string {
	quoted := pq.QuoteIdentifier(table)
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id BIGSERIAL PRIMARY KEY,
  type_key TEXT NOT NULL,
  session_id TEXT NOT NULL DEFAULT '',
  path TEXT NOT NULL,
  payload JSONB,
  changed_at BIGINT NOT NULL,
  flushed_at BIGINT NOT NULL DEFAULT 0
)`, quoted),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (type_key, changed_at) WHERE flushed_at = 0",
			pq.QuoteIdentifier(table+"_unflushed_idx"), quoted),
	}
}

// Open opens a database/sql handle to the journal database. With PGUseIAM
// set, a DSQL connect token replaces the password; generation failure falls
// back to the configured one.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	password := cfg.PGPassword
	if cfg.PGUseIAM {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		if cfg.S3Region != "" {
			awsCfg.Region = cfg.S3Region
		}
		endpoint := fmt.Sprintf("%s:%d", cfg.PGHost, cfg.PGPort)
		if token, err := generateIAMTokenFn(ctx, endpoint, awsCfg.Region, awsCfg.Credentials); err == nil && token != "" {
			password = token
			zap.S().Infow("generated IAM auth token for journal connection")
		} else {
			zap.S().Warnw("failed to generate IAM auth token; falling back to configured password", "err", err)
		}
	}

	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.PGHost, cfg.PGPort, cfg.PGUser, password, cfg.PGDB, cfg.PGSSLMode)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	return db, nil
}

// Writer appends mutation entries to the journal table.
type Writer struct {
	db    *sql.DB
	table string
}

// NewWriter creates a journal writer over an open handle.
func NewWriter(db *sql.DB, table string) *Writer {
	return &Writer{db: db, table: table}
}

// Record appends one entry. Payload is stored as JSONB; flushed_at starts at
// zero and is set by the flusher.
func (w *Writer) Record(ctx context.Context, entry internal.JournalEntry) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("marshal journal payload: %w", err)
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (type_key, session_id, path, payload, changed_at, flushed_at) VALUES ($1, $2, $3, $4, $5, 0)",
		pq.QuoteIdentifier(w.table))
	if _, err := w.db.ExecContext(ctx, query, entry.TypeKey, entry.SessionID, entry.Path, payload, entry.ChangedAt); err != nil {
		return fmt.Errorf("insert journal row: %w", err)
	}
	return nil
}
