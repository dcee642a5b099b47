package e2e_harness

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/lychee-technology/facet"
	"github.com/lychee-technology/facet/internal"
	"github.com/lychee-technology/facet/internal/journal"
)

const e2eChildDoc = `{
	"type_key": "Child",
	"identifier_properties": ["SessionID"],
	"properties": [
		{"name": "SessionID", "type": "double"},
		{"name": "Label", "type": "string"}
	]
}`

const e2eParentDoc = `{
	"type_key": "Parent",
	"properties": [
		{"name": "Name", "type": "string"},
		{"name": "Children", "type": "Child", "is_array": true}
	]
}`

func TestJournalFlushEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping journal E2E in -short mode")
	}
	ctx := context.Background()
	h := &TestHarness{}

	if _, err := h.StartPostgres(ctx); err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	defer h.StopPostgres(ctx)
	if _, err := h.StartS3(ctx); err != nil {
		t.Fatalf("start s3: %v", err)
	}
	defer h.StopS3(ctx)

	t.Setenv("AWS_ACCESS_KEY_ID", "minio")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "minio")

	docs := map[string]string{"Child": e2eChildDoc, "Parent": e2eParentDoc}

	// Schema definitions through the Postgres source.
	if err := SeedSchemaTable(ctx, h.PGDB, "facet_schemas", docs); err != nil {
		t.Fatalf("seed schema table: %v", err)
	}
	pool, err := pgxpool.New(ctx, h.PGDSN)
	if err != nil {
		t.Fatalf("pgx pool: %v", err)
	}
	defer pool.Close()

	registry := facet.NewSchemaRegistry()
	keys, err := internal.LoadIntoRegistry(ctx, internal.NewPostgresSchemaSource(pool, "facet_schemas"), registry)
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 schemas, got %v", keys)
	}

	// Same definitions through the S3 source.
	for typeKey, doc := range docs {
		if err := UploadObjectToS3(ctx, h.S3Endpoint, "minio", "minio", "facet-e2e", "definitions/"+typeKey+".json", []byte(doc)); err != nil {
			t.Fatalf("upload definition %s: %v", typeKey, err)
		}
	}
	s3Client, err := internal.NewS3Client(ctx, facet.S3Config{Region: "us-east-1", Bucket: "facet-e2e", Prefix: "definitions/", Endpoint: h.S3Endpoint})
	if err != nil {
		t.Fatalf("s3 client: %v", err)
	}
	defs, err := internal.NewS3SchemaSource(s3Client, "facet-e2e", "definitions/").Load(ctx)
	if err != nil {
		t.Fatalf("s3 source load: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions from s3, got %d", len(defs))
	}

	// Apply a mutation through the bridge; it lands in the journal.
	if err := SeedJournal(ctx, h.PGDB, "change_journal", nil); err != nil {
		t.Fatalf("seed journal: %v", err)
	}
	writer := journal.NewWriter(h.PGDB, "change_journal")
	bridge := internal.NewBridge(registry, writer)

	factory := facet.NewFactory(registry)
	parent, err := factory.Create("Parent", map[string]any{
		"Name":     "root",
		"Children": []any{map[string]any{"SessionID": float64(1), "Label": "first"}},
	})
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	if err := bridge.RegisterRoot("main", "Parent", parent); err != nil {
		t.Fatalf("register root: %v", err)
	}
	session, err := bridge.ApplyValue(ctx, "main", "Children[1].Label", "renamed", "")
	if err != nil {
		t.Fatalf("apply value: %v", err)
	}
	if session == "" {
		t.Fatalf("expected a session id")
	}

	var unflushed int
	if err := h.PGDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM change_journal WHERE flushed_at = 0").Scan(&unflushed); err != nil {
		t.Fatalf("count unflushed: %v", err)
	}
	if unflushed != 1 {
		t.Fatalf("expected 1 unflushed row, got %d", unflushed)
	}

	// Flush the journal to Parquet on S3.
	flushCfg := journal.Config{
		PGHost:     h.PGHost,
		PGPort:     h.PGPort,
		PGUser:     "postgres",
		PGPassword: "password",
		PGDB:       "postgres",
		PGSSLMode:  "disable",
		Table:      "change_journal",

		S3Bucket:   "facet-e2e",
		S3Prefix:   "journal",
		S3Region:   "us-east-1",
		S3Endpoint: h.S3Endpoint,

		DuckDBMemoryMB: 256,
		DuckDBThreads:  1,

		MinRecords: 1,
		MaxAgeMs:   60000,
		BatchSize:  100,
	}
	flushed, err := journal.RunOnce(ctx, flushCfg, false, zap.NewNop())
	if err != nil {
		t.Fatalf("run flush: %v", err)
	}
	if flushed != 1 {
		t.Fatalf("expected 1 flushed row, got %d", flushed)
	}
	if err := h.PGDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM change_journal WHERE flushed_at = 0").Scan(&unflushed); err != nil {
		t.Fatalf("recount unflushed: %v", err)
	}
	if unflushed != 0 {
		t.Fatalf("expected journal drained, got %d unflushed", unflushed)
	}

	objectKeys, err := ListObjectKeys(ctx, h.S3Endpoint, "minio", "minio", "facet-e2e", "journal/delta/Parent/")
	if err != nil {
		t.Fatalf("list flushed objects: %v", err)
	}
	var finals []string
	for _, key := range objectKeys {
		if strings.Contains(key, "/_tmp/") {
			continue
		}
		if strings.HasSuffix(key, ".parquet") {
			finals = append(finals, key)
		}
	}
	if len(finals) != 1 {
		t.Fatalf("expected one final parquet object, got %v", objectKeys)
	}
}
