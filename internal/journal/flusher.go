package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awsCreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dsql/auth"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/lychee-technology/facet/internal"
	"go.uber.org/zap"
)

// generateIAMTokenFn is swappable in tests.
var generateIAMTokenFn = func(ctx context.Context, endpoint, region string, creds interface{}) (string, error) {
	provider, _ := creds.(aws.CredentialsProvider)
	return auth.GenerateDbConnectAuthToken(ctx, endpoint, region, provider)
}

// advisoryLockSpace separates journal flush locks from other users of the
// advisory lock space.
const advisoryLockSpace = "facet_journal"

// AcquireTypeLock takes the advisory lock guarding one type's flush. It does
// not block; false means another flusher run holds the lock.
func AcquireTypeLock(ctx context.Context, db *sql.DB, typeKey string) (bool, error) {
	var locked bool
	err := db.QueryRowContext(ctx,
		"SELECT pg_try_advisory_lock(hashtext($1), hashtext($2))",
		advisoryLockSpace, typeKey).Scan(&locked)
	return locked, err
}

// ReleaseTypeLock releases the advisory lock for one type.
func ReleaseTypeLock(ctx context.Context, db *sql.DB, typeKey string) error {
	_, err := db.ExecContext(ctx,
		"SELECT pg_advisory_unlock(hashtext($1), hashtext($2))",
		advisoryLockSpace, typeKey)
	return err
}

// UnflushedStats returns how many rows of one type are unflushed and the
// oldest changed_at among them (0 when none).
func UnflushedStats(ctx context.Context, db *sql.DB, table, typeKey string) (int, int64, error) {
	query := fmt.Sprintf(
		"SELECT COUNT(*), COALESCE(MIN(changed_at), 0) FROM %s WHERE type_key = $1 AND flushed_at = 0",
		pq.QuoteIdentifier(table))
	var cnt int
	var oldest int64
	if err := db.QueryRowContext(ctx, query, typeKey).Scan(&cnt, &oldest); err != nil {
		return 0, 0, fmt.Errorf("query journal stats: %w", err)
	}
	return cnt, oldest, nil
}

// SelectBatchSnapshot picks the oldest unflushed rows of one type up to the
// batch size and returns their ids plus the snapshot timestamp, the newest
// changed_at in the batch. Export and mark both cut at that snapshot, so a
// row is never marked without having landed in the Parquet file.
func SelectBatchSnapshot(ctx context.Context, db *sql.DB, table, typeKey string, batchSize int) ([]int64, int64, error) {
	query := fmt.Sprintf(
		"SELECT id, changed_at FROM %s WHERE type_key = $1 AND flushed_at = 0 ORDER BY changed_at ASC, id ASC LIMIT $2",
		pq.QuoteIdentifier(table))
	rows, err := db.QueryContext(ctx, query, typeKey, batchSize)
	if err != nil {
		return nil, 0, fmt.Errorf("select journal batch: %w", err)
	}
	defer rows.Close()

	var ids []int64
	var snapshot int64
	for rows.Next() {
		var id, changedAt int64
		if err := rows.Scan(&id, &changedAt); err != nil {
			return nil, 0, fmt.Errorf("scan journal row: %w", err)
		}
		ids = append(ids, id)
		if changedAt > snapshot {
			snapshot = changedAt
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate journal batch: %w", err)
	}
	return ids, snapshot, nil
}

// MarkFlushed stamps every unflushed row of the type at or before the
// snapshot and returns how many rows were updated.
func MarkFlushed(ctx context.Context, db *sql.DB, table, typeKey string, snapshot, flushedAt int64) (int64, error) {
	query := fmt.Sprintf(
		"UPDATE %s SET flushed_at = $1 WHERE type_key = $2 AND flushed_at = 0 AND changed_at <= $3",
		pq.QuoteIdentifier(table))
	res, err := db.ExecContext(ctx, query, flushedAt, typeKey, snapshot)
	if err != nil {
		return 0, fmt.Errorf("mark flushed: %w", err)
	}
	return res.RowsAffected()
}

// CopyTmpToFinal promotes the exported object from its tmp key and removes
// the tmp object. Promotion is the commit point of a flush.
func CopyTmpToFinal(ctx context.Context, client *s3.Client, bucket, tmpKey, finalKey string, logger *zap.Logger) error {
	if _, err := client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(bucket),
		CopySource: aws.String(bucket + "/" + tmpKey),
		Key:        aws.String(finalKey),
	}); err != nil {
		return fmt.Errorf("s3 copy tmp to final: %w", err)
	}
	if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(tmpKey),
	}); err != nil {
		logger.Sugar().Warnw("failed to delete tmp object", "key", tmpKey, "err", err)
	}
	return nil
}

// shouldFlush applies the flush thresholds: enough rows, or an oldest row
// past the age limit.
func shouldFlush(cnt int, oldest, nowMs int64, cfg Config) bool {
	if cnt <= 0 {
		return false
	}
	if cnt >= cfg.MinRecords {
		return true
	}
	return oldest > 0 && nowMs-oldest >= cfg.MaxAgeMs
}

// RunOnce performs one full pass over types with unflushed journal rows and
// flushes those meeting the thresholds. It returns the number of rows
// flushed across all types.
func RunOnce(ctx context.Context, cfg Config, dryRun bool, logger *zap.Logger) (int64, error) {
	// AWS config + S3 client
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return 0, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.S3Region != "" {
		awsCfg.Region = cfg.S3Region
	}
	if envKey := os.Getenv("AWS_ACCESS_KEY_ID"); envKey != "" {
		awsCfg.Credentials = awsCreds.NewStaticCredentialsProvider(os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"), "")
	}
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	// Postgres connection for locks, stats and marking
	pgPassword := cfg.PGPassword
	if cfg.PGUseIAM {
		endpoint := fmt.Sprintf("%s:%d", cfg.PGHost, cfg.PGPort)
		if token, err := generateIAMTokenFn(ctx, endpoint, awsCfg.Region, awsCfg.Credentials); err == nil && token != "" {
			pgPassword = token
			logger.Sugar().Infow("generated IAM auth token for Postgres connection")
		} else {
			logger.Sugar().Warnw("failed to generate IAM auth token; falling back to configured password", "err", err)
		}
	}

	pgConnStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.PGHost, cfg.PGPort, cfg.PGUser, pgPassword, cfg.PGDB, cfg.PGSSLMode)
	db, err := sql.Open("postgres", pgConnStr)
	if err != nil {
		return 0, fmt.Errorf("open pg: %w", err)
	}
	defer db.Close()

	duck, err := NewDuckExporter(ctx, cfg, os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"), logger)
	if err != nil {
		return 0, fmt.Errorf("new duck exporter: %w", err)
	}
	defer duck.DB.Close()

	// enumerate types with unflushed rows
	query := fmt.Sprintf("SELECT DISTINCT type_key FROM %s WHERE flushed_at = 0", pq.QuoteIdentifier(cfg.Table))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("query distinct type keys: %w", err)
	}
	defer rows.Close()
	var typeKeys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return 0, fmt.Errorf("scan type key: %w", err)
		}
		typeKeys = append(typeKeys, key)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate type keys: %w", err)
	}

	var totalFlushed int64
	for _, typeKey := range typeKeys {
		logger.Sugar().Infow("processing type", "type_key", typeKey)
		locked, err := AcquireTypeLock(ctx, db, typeKey)
		if err != nil {
			logger.Sugar().Errorw("acquire lock failed", "type_key", typeKey, "err", err)
			continue
		}
		if !locked {
			logger.Sugar().Infow("lock not acquired, skipping", "type_key", typeKey)
			continue
		}
		func() {
			defer ReleaseTypeLock(ctx, db, typeKey)

			cnt, oldest, err := UnflushedStats(ctx, db, cfg.Table, typeKey)
			if err != nil {
				logger.Sugar().Errorw("journal stats failed", "err", err)
				return
			}
			nowMs := time.Now().UnixMilli()
			if !shouldFlush(cnt, oldest, nowMs, cfg) {
				logger.Sugar().Infow("skip flush: thresholds not met", "type_key", typeKey, "cnt", cnt, "oldest", oldest)
				return
			}

			ids, snapshot, err := SelectBatchSnapshot(ctx, db, cfg.Table, typeKey, cfg.BatchSize)
			if err != nil {
				logger.Sugar().Errorw("select batch failed", "err", err)
				return
			}
			if len(ids) == 0 {
				logger.Sugar().Infow("no rows in batch", "type_key", typeKey)
				return
			}

			tmpUUID := uuid.Must(uuid.NewV7()).String()
			finalUUID := uuid.Must(uuid.NewV7()).String()
			prefix := strings.TrimSuffix(cfg.S3Prefix, "/")
			tmpKey := fmt.Sprintf("%s/delta/%s/_tmp/%s.parquet", prefix, typeKey, tmpUUID)
			finalKey := fmt.Sprintf("%s/delta/%s/%s.parquet", prefix, typeKey, finalUUID)
			s3TmpPath := fmt.Sprintf("s3://%s/%s", cfg.S3Bucket, tmpKey)

			logger.Sugar().Infow("export snapshot", "type_key", typeKey, "snapshot_ts", snapshot, "tmp", s3TmpPath)
			if err := duck.ExportSnapshotToTmp(ctx, pgConnStr, cfg.Table, typeKey, snapshot, s3TmpPath); err != nil {
				logger.Sugar().Errorw("duck export failed", "err", err)
				return
			}
			if err := CopyTmpToFinal(ctx, s3Client, cfg.S3Bucket, tmpKey, finalKey, logger); err != nil {
				logger.Sugar().Errorw("s3 copy tmp to final failed", "err", err)
				return
			}
			if dryRun {
				logger.Sugar().Infow("dry-run: skipping mark flushed", "type_key", typeKey)
				return
			}
			flushedAt := time.Now().UnixMilli()
			rowsUpdated, err := MarkFlushed(ctx, db, cfg.Table, typeKey, snapshot, flushedAt)
			if err != nil {
				logger.Sugar().Errorw("mark flushed failed", "err", err)
				return
			}
			totalFlushed += rowsUpdated
			internal.EmitJournalFlush(ctx, typeKey, rowsUpdated)
			logger.Sugar().Infow("flush completed", "type_key", typeKey, "rows_flushed", rowsUpdated, "final_key", finalKey)
		}()
	}
	return totalFlushed, nil
}
