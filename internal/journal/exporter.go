package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"go.uber.org/zap"
)

// DuckExporter handles DuckDB interactions for exporting journal snapshots
// to an S3 temp path.
type DuckExporter struct {
	DB     *sql.DB
	Logger *zap.Logger
}

// NewDuckExporter opens a DuckDB connection and configures pragmas and
// extensions. Pragma or extension failures are logged and tolerated; the
// export itself will surface anything fatal.
func NewDuckExporter(ctx context.Context, cfg Config, s3AccessKey, s3Secret string, logger *zap.Logger) (*DuckExporter, error) {
	db, err := sql.Open("duckdb", cfg.DuckDBPath)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pragmas := []string{
		fmt.Sprintf("PRAGMA memory_limit='%dMB';", cfg.DuckDBMemoryMB),
		fmt.Sprintf("PRAGMA threads=%d;", cfg.DuckDBThreads),
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx2, p); err != nil {
			logger.Sugar().Warnw("duckdb pragma failed", "pragma", p, "err", err)
		}
	}

	exts := []string{"httpfs", "parquet", "postgres_scanner"}
	for _, e := range exts {
		if _, err := db.ExecContext(ctx2, "INSTALL "+e+";"); err != nil {
			logger.Sugar().Warnw("duckdb install extension failed", "ext", e, "err", err)
		} else {
			if _, err := db.ExecContext(ctx2, "LOAD "+e+";"); err != nil {
				logger.Sugar().Warnw("duckdb load extension failed", "ext", e, "err", err)
			}
		}
	}

	if s3AccessKey != "" {
		if _, err := db.ExecContext(ctx2, fmt.Sprintf("SET s3_access_key_id='%s';", s3AccessKey)); err != nil {
			logger.Sugar().Warnw("duckdb set s3_access_key_id failed", "err", err)
		}
	}
	if s3Secret != "" {
		if _, err := db.ExecContext(ctx2, fmt.Sprintf("SET s3_secret_access_key='%s';", s3Secret)); err != nil {
			logger.Sugar().Warnw("duckdb set s3_secret_access_key failed", "err", err)
		}
	}
	if cfg.S3Region != "" {
		if _, err := db.ExecContext(ctx2, fmt.Sprintf("SET s3_region='%s';", cfg.S3Region)); err != nil {
			logger.Sugar().Warnw("duckdb set s3_region failed", "err", err)
		}
	}
	if cfg.S3Endpoint != "" {
		ep := strings.TrimPrefix(cfg.S3Endpoint, "http://")
		if _, err := db.ExecContext(ctx2, fmt.Sprintf("SET s3_endpoint='%s';", ep)); err != nil {
			logger.Sugar().Warnw("duckdb set s3_endpoint failed", "err", err)
		}
		if _, err := db.ExecContext(ctx2, "SET s3_use_ssl=false;"); err != nil {
			logger.Sugar().Warnw("duckdb set s3_use_ssl failed", "err", err)
		}
		if _, err := db.ExecContext(ctx2, "SET s3_url_style='path';"); err != nil {
			logger.Sugar().Warnw("duckdb set s3_url_style failed", "err", err)
		}
	}

	return &DuckExporter{DB: db, Logger: logger}, nil
}

// buildExportSQL renders the COPY statement that reads one type's unflushed
// journal rows through postgres_scan and writes them to the S3 tmp path as
// ZSTD Parquet. String arguments are escaped layer by layer: values inside
// the scan filter first, then the filter as a whole when it becomes a
// literal of the outer statement.
func buildExportSQL(pgConnStr, table, typeKey string, snapshotTS int64, s3TmpPath string) string {
	escape := func(s string) string { return strings.ReplaceAll(s, "'", "''") }

	filter := fmt.Sprintf("type_key = '%s' AND flushed_at = 0 AND changed_at <= %d",
		escape(typeKey), snapshotTS)

	return fmt.Sprintf(`COPY (
SELECT
  cj.id AS journal_id,
  cj.type_key AS type_key,
  cj.session_id AS session_id,
  cj.path AS path,
  CAST(cj.payload AS VARCHAR) AS payload,
  cj.changed_at AS changed_at
FROM postgres_scan('%s', '%s', '%s') cj
ORDER BY cj.id
) TO '%s' (FORMAT PARQUET, COMPRESSION 'ZSTD');
`, escape(pgConnStr), escape(table), escape(filter), escape(s3TmpPath))
}

// ExportSnapshotToTmp runs the COPY for one type up to the snapshot
// timestamp. s3TmpPath is a destination like
// 's3://bucket/prefix/delta/<type>/_tmp/<uuid>.parquet'.
func (e *DuckExporter) ExportSnapshotToTmp(ctx context.Context, pgConnStr, table, typeKey string, snapshotTS int64, s3TmpPath string) error {
	query := buildExportSQL(pgConnStr, table, typeKey, snapshotTS, s3TmpPath)

	preview := query
	if len(preview) > 400 {
		preview = preview[:400]
	}
	e.Logger.Sugar().Infow("duckdb export sql", "sql_preview", preview)

	ctx2, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()
	if _, err := e.DB.ExecContext(ctx2, query); err != nil {
		return fmt.Errorf("duckdb copy exec: %w", err)
	}
	return nil
}
