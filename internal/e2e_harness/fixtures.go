package e2e_harness

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/lychee-technology/facet/internal"
	"github.com/lychee-technology/facet/internal/journal"
)

// SeedSchemaTable creates the schema table and upserts the given definition
// documents keyed by type key.
func SeedSchemaTable(ctx context.Context, db *sql.DB, table string, docs map[string]string) error {
	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  type_key TEXT PRIMARY KEY,
  definition JSONB NOT NULL,
  updated_at BIGINT NOT NULL
)`, table)
	if _, err := db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create schema table: %w", err)
	}
	now := time.Now().UnixMilli()
	upsert := fmt.Sprintf(`INSERT INTO %s (type_key, definition, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (type_key) DO UPDATE SET definition = EXCLUDED.definition, updated_at = EXCLUDED.updated_at`, table)
	for typeKey, doc := range docs {
		if _, err := db.ExecContext(ctx, upsert, typeKey, doc, now); err != nil {
			return fmt.Errorf("upsert definition %s: %w", typeKey, err)
		}
	}
	return nil
}

// SeedJournal creates the journal table and inserts the given entries as
// unflushed rows. A nil slice just creates the table.
func SeedJournal(ctx context.Context, db *sql.DB, table string, entries []internal.JournalEntry) error {
	for _, stmt := range journal.DDL(table) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("journal ddl: %w", err)
		}
	}
	insert := fmt.Sprintf("INSERT INTO %s (type_key, session_id, path, payload, changed_at, flushed_at) VALUES ($1, $2, $3, $4, $5, 0)", table)
	for _, entry := range entries {
		payload, err := json.Marshal(entry.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		if _, err := db.ExecContext(ctx, insert, entry.TypeKey, entry.SessionID, entry.Path, payload, entry.ChangedAt); err != nil {
			return fmt.Errorf("insert journal entry: %w", err)
		}
	}
	return nil
}

func newTestS3Client(ctx context.Context, endpoint, accessKey, secretKey string) (*s3.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	}
	if endpoint != "" {
		loadOpts = append(loadOpts, config.WithBaseEndpoint(endpoint))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	}), nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func EnsureBucket(ctx context.Context, endpoint, accessKey, secretKey, bucket string) error {
	client, err := newTestS3Client(ctx, endpoint, accessKey, secretKey)
	if err != nil {
		return err
	}
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err == nil {
		return nil
	}
	if _, cerr := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); cerr != nil {
		var apiErr smithy.APIError
		if errors.As(cerr, &apiErr) {
			code := apiErr.ErrorCode()
			if code != "BucketAlreadyOwnedByYou" && code != "BucketAlreadyExists" {
				return fmt.Errorf("create bucket: %w", cerr)
			}
			return nil
		}
		return fmt.Errorf("create bucket: %w", cerr)
	}
	return nil
}

// UploadObjectToS3 puts a small object, creating the bucket first when
// needed. Used to stage definition documents for the S3 schema source.
func UploadObjectToS3(ctx context.Context, endpoint, accessKey, secretKey, bucket, objectName string, body []byte) error {
	if err := EnsureBucket(ctx, endpoint, accessKey, secretKey, bucket); err != nil {
		return err
	}
	client, err := newTestS3Client(ctx, endpoint, accessKey, secretKey)
	if err != nil {
		return err
	}
	uploader := manager.NewUploader(client)
	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectName),
		Body:   bytes.NewReader(body),
	}); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	return nil
}

// ListObjectKeys returns every key under the prefix.
func ListObjectKeys(ctx context.Context, endpoint, accessKey, secretKey, bucket, prefix string) ([]string, error) {
	client, err := newTestS3Client(ctx, endpoint, accessKey, secretKey)
	if err != nil {
		return nil, err
	}
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}
