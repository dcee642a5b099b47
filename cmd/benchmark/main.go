package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lychee-technology/facet/internal/journal"
)

type options struct {
	host         string
	port         int
	database     string
	user         string
	password     string
	sslMode      string
	journalTable string
	purge        bool
	entryCount   int
	typeCount    int
	sessionCount int
	spreadMs     int64
	chunkSize    int
	seed         int64
	seedProvided bool
}

func main() {
	log.SetFlags(0)

	opts := parseFlags()
	ctx := context.Background()

	connString := buildConnString(opts)
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		log.Fatalf("failed to create connection pool: %v", err)
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		log.Fatalf("failed to acquire connection: %v", err)
	}
	defer conn.Release()

	if err := withTx(ctx, conn, func(tx pgx.Tx) error {
		for _, stmt := range journal.DDL(opts.journalTable) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("ensure journal table: %w", err)
			}
		}
		return nil
	}); err != nil {
		log.Fatalf("failed to initialize journal table: %v", err)
	}

	if opts.purge {
		if err := withTx(ctx, conn, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s", quoteIdentifier(opts.journalTable)))
			return err
		}); err != nil {
			log.Fatalf("failed to purge journal table: %v", err)
		}
		log.Printf("[info] Cleared existing journal rows in %s", opts.journalTable)
	}

	if !opts.seedProvided {
		log.Printf("[info] Using random seed %d", opts.seed)
	}
	random := rand.New(rand.NewSource(opts.seed))

	entries, err := buildJournalEntries(opts, random)
	if err != nil {
		log.Fatalf("failed to build journal entries: %v", err)
	}

	start := time.Now()
	if err := copyEntriesInChunks(ctx, conn, opts.journalTable, entries, opts.chunkSize); err != nil {
		log.Fatalf("failed to insert journal entries: %v", err)
	}

	log.Println("[success] Journal load generation complete:")
	log.Printf("  - rows:     %d", len(entries))
	log.Printf("  - types:    %d", opts.typeCount)
	log.Printf("  - sessions: %d", opts.sessionCount)
	log.Printf("  - duration: %v", time.Since(start))
}

func parseFlags() options {
	var opts options

	flag.StringVar(&opts.host, "db-host", getenvDefault("DB_HOST", "localhost"), "database host")
	flag.IntVar(&opts.port, "db-port", getenvDefaultInt("DB_PORT", 5432), "database port")
	flag.StringVar(&opts.database, "db-name", getenvDefault("DB_NAME", "facet"), "database name")
	flag.StringVar(&opts.user, "db-user", getenvDefault("DB_USER", "postgres"), "database user")
	flag.StringVar(&opts.password, "db-password", getenvDefault("DB_PASSWORD", "postgres"), "database password")
	flag.StringVar(&opts.sslMode, "db-ssl-mode", getenvDefault("DB_SSL_MODE", "disable"), "database sslmode")
	flag.StringVar(&opts.journalTable, "journal-table", getenvDefault("JOURNAL_TABLE", "change_journal"), "change journal table")
	flag.BoolVar(&opts.purge, "purge", false, "truncate the journal table before seeding")
	flag.IntVar(&opts.entryCount, "entries", 100_000, "number of journal rows to generate")
	flag.IntVar(&opts.typeCount, "types", 4, "number of distinct type keys")
	flag.IntVar(&opts.sessionCount, "sessions", 50, "number of distinct session ids")
	flag.Int64Var(&opts.spreadMs, "spread-ms", 3_600_000, "how far back changed_at timestamps spread")
	flag.IntVar(&opts.chunkSize, "chunk-size", 1000, "number of rows to copy per batch")
	seed := flag.Int64("seed", 0, "random seed (0 uses current time)")

	flag.Parse()

	if *seed == 0 {
		opts.seed = time.Now().UnixNano()
		opts.seedProvided = false
	} else {
		opts.seed = *seed
		opts.seedProvided = true
	}

	if opts.typeCount < 1 {
		opts.typeCount = 1
	}
	if opts.sessionCount < 1 {
		opts.sessionCount = 1
	}
	if opts.chunkSize < 1 {
		opts.chunkSize = 1000
	}

	return opts
}

type journalRow struct {
	typeKey   string
	sessionID string
	path      string
	payload   []byte
	changedAt int64
}

// buildJournalEntries generates random mutation rows across a fixed pool of
// type keys and sessions. Timestamps spread backwards from now so age-based
// flush thresholds have something to bite on.
func buildJournalEntries(opts options, r *rand.Rand) ([]journalRow, error) {
	typeKeys := make([]string, opts.typeCount)
	for i := range typeKeys {
		typeKeys[i] = fmt.Sprintf("BenchType%02d", i+1)
	}
	sessions := make([]string, opts.sessionCount)
	for i := range sessions {
		sessions[i] = uuid.Must(uuid.NewV7()).String()
	}

	statuses := []string{"draft", "active", "archived", "deleted"}
	labels := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot"}

	nowMs := time.Now().UnixMilli()
	entries := make([]journalRow, 0, opts.entryCount)

	for i := 0; i < opts.entryCount; i++ {
		var path string
		var value any
		switch r.Intn(4) {
		case 0:
			path = "Name"
			value = fmt.Sprintf("%s-%d", randomChoice(r, labels), r.Intn(10_000))
		case 1:
			path = "Status"
			value = randomChoice(r, statuses)
		case 2:
			path = fmt.Sprintf("Lines[%d].Qty", r.Intn(5)+1)
			value = float64(r.Intn(500)) + r.Float64()
		default:
			path = fmt.Sprintf("Tags[%d]", r.Intn(3)+1)
			value = randomChoice(r, labels)
		}

		payload, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}

		entries = append(entries, journalRow{
			typeKey:   randomChoice(r, typeKeys),
			sessionID: randomChoice(r, sessions),
			path:      path,
			payload:   payload,
			changedAt: nowMs - r.Int63n(opts.spreadMs+1),
		})
	}

	return entries, nil
}

func copyEntriesInChunks(ctx context.Context, conn *pgxpool.Conn, table string, entries []journalRow, chunkSize int) error {
	if len(entries) == 0 {
		return nil
	}

	tableIdent := pgx.Identifier(splitIdentifier(table))
	columns := []string{"type_key", "session_id", "path", "payload", "changed_at", "flushed_at"}

	for start := 0; start < len(entries); start += chunkSize {
		end := start + chunkSize
		if end > len(entries) {
			end = len(entries)
		}

		rows := make([][]any, end-start)
		for i := start; i < end; i++ {
			entry := entries[i]
			rows[i-start] = []any{
				entry.typeKey,
				entry.sessionID,
				entry.path,
				entry.payload,
				entry.changedAt,
				int64(0),
			}
		}

		if err := withTx(ctx, conn, func(tx pgx.Tx) error {
			if _, err := tx.CopyFrom(ctx, tableIdent, columns, pgx.CopyFromRows(rows)); err != nil {
				return fmt.Errorf("copy into %s: %w", table, err)
			}
			fmt.Printf("copy data, start pos: %d\n", start)
			return nil
		}); err != nil {
			return err
		}
	}

	return nil
}

func randomChoice(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}

func buildConnString(opts options) string {
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
