package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lychee-technology/facet"
	"github.com/lychee-technology/facet/internal"
	"github.com/lychee-technology/facet/internal/journal"
)

type initJournalOptions struct {
	host         string
	port         int
	database     string
	user         string
	password     string
	sslMode      string
	schemaTable  string
	journalTable string
	schemaDir    string
}

func runInitJournal(args []string) error {
	flags := flag.NewFlagSet("init-journal", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: facet-tools init-journal [options]")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	opts := initJournalOptions{}
	flags.StringVar(&opts.host, "db-host", getenvDefault("DB_HOST", "localhost"), "database host")
	flags.IntVar(&opts.port, "db-port", getenvDefaultInt("DB_PORT", 5432), "database port")
	flags.StringVar(&opts.database, "db-name", getenvDefault("DB_NAME", "facet"), "database name")
	flags.StringVar(&opts.user, "db-user", getenvDefault("DB_USER", "postgres"), "database user")
	flags.StringVar(&opts.password, "db-password", getenvDefault("DB_PASSWORD", "postgres"), "database password")
	flags.StringVar(&opts.sslMode, "db-ssl-mode", getenvDefault("DB_SSL_MODE", "disable"), "database sslmode")
	flags.StringVar(&opts.schemaTable, "schema-table", getenvDefault("SCHEMA_TABLE", "facet_schemas"), "schema definition table name")
	flags.StringVar(&opts.journalTable, "journal-table", getenvDefault("JOURNAL_TABLE", "change_journal"), "change journal table name")
	flags.StringVar(&opts.schemaDir, "schema-dir", getenvDefault("SCHEMA_DIR", ""), "Directory containing definition files to register (optional)")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	return initJournalTables(opts)
}

func initJournalTables(opts initJournalOptions) error {
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, buildConnString(opts))
	if err != nil {
		return fmt.Errorf("create connection pool: %w", err)
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if err := withTx(ctx, conn, func(tx pgx.Tx) error {
		return ensureTables(ctx, tx, opts)
	}); err != nil {
		return err
	}

	fmt.Println("Journal tables initialized successfully.")
	return nil
}

func buildConnString(opts initJournalOptions) string {
	hostPort := fmt.Sprintf("%s:%d", opts.host, opts.port)

	var userInfo *url.Userinfo
	if opts.password != "" {
		userInfo = url.UserPassword(opts.user, opts.password)
	} else {
		userInfo = url.User(opts.user)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   hostPort,
		Path:   "/" + opts.database,
	}

	q := url.Values{}
	if opts.sslMode != "" {
		q.Set("sslmode", opts.sslMode)
	}
	u.RawQuery = q.Encode()

	return u.String()
}

func ensureTables(ctx context.Context, tx pgx.Tx, opts initJournalOptions) error {
	schemaTable := quoteIdentifier(opts.schemaTable)

	ddlSchema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		type_key   TEXT PRIMARY KEY,
		definition JSONB NOT NULL,
		updated_at BIGINT NOT NULL
	)`, schemaTable)

	if _, err := tx.Exec(ctx, ddlSchema); err != nil {
		return fmt.Errorf("ensure schema table: %w", err)
	}
	fmt.Printf("Created schema table: %s\n", opts.schemaTable)

	for _, stmt := range journal.DDL(opts.journalTable) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure journal table: %w", err)
		}
	}
	fmt.Printf("Created journal table: %s\n", opts.journalTable)

	if opts.schemaDir != "" {
		if err := registerDefinitions(ctx, tx, opts.schemaTable, opts.schemaDir); err != nil {
			return err
		}
	}

	return nil
}

// registerDefinitions validates every definition file in the directory and
// upserts it into the schema table keyed by its type key.
func registerDefinitions(ctx context.Context, tx pgx.Tx, schemaTable, schemaDir string) error {
	files, err := listDefinitionFiles(schemaDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Printf("No definition files found, dir: %s\n", schemaDir)
		return nil
	}

	quotedTable := quoteIdentifier(schemaTable)
	upsertSQL := fmt.Sprintf(
		`INSERT INTO %s (type_key, definition, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (type_key) DO UPDATE SET definition = EXCLUDED.definition, updated_at = EXCLUDED.updated_at`,
		quotedTable,
	)

	now := time.Now().UnixMilli()
	for _, file := range files {
		path := filepath.Join(schemaDir, file)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if verr := internal.ValidateDefinitionDocument(file, data); verr != nil {
			return fmt.Errorf("definition %s invalid: %w", file, verr)
		}

		var def facet.SchemaDefinition
		if err := json.Unmarshal(data, &def); err != nil {
			return fmt.Errorf("parse %s: %w", file, err)
		}

		if _, err := tx.Exec(ctx, upsertSQL, def.TypeKey, data, now); err != nil {
			return fmt.Errorf("register %s: %w", def.TypeKey, err)
		}
		fmt.Printf("Registered definition, type: %s, file: %s\n", def.TypeKey, file)
	}

	fmt.Printf("Registered definitions from directory, count: %d, dir: %s\n", len(files), schemaDir)
	return nil
}

func withTx(ctx context.Context, conn *pgxpool.Conn, fn func(pgx.Tx) error) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w; rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func quoteIdentifier(name string) string {
	return pgx.Identifier(splitIdentifier(name)).Sanitize()
}

func splitIdentifier(name string) []string {
	parts := strings.Split(name, ".")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return []string{name}
	}
	return result
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getenvDefaultInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}
