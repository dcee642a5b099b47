package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dsql/auth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/facet"
	"go.uber.org/zap"
)

type schemaQueryPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSchemaSource loads definition documents from a table with
// (type_key text, definition jsonb) columns.
type PostgresSchemaSource struct {
	pool  schemaQueryPool
	table string
}

// NewPostgresSchemaSource creates a table-backed schema source.
func NewPostgresSchemaSource(pool schemaQueryPool, table string) *PostgresSchemaSource {
	return &PostgresSchemaSource{pool: pool, table: table}
}

// Name identifies the source in logs and errors.
func (s *PostgresSchemaSource) Name() string {
	return "postgres:" + s.table
}

// Load reads every row of the schema table, keying each failure by the
// row's type_key so one broken document does not hide the rest.
func (s *PostgresSchemaSource) Load(ctx context.Context) ([]*facet.SchemaDefinition, error) {
	query := fmt.Sprintf("SELECT type_key, definition FROM %s ORDER BY type_key", sanitizeIdentifier(s.table))
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, facet.NewSourceUnavailableError(s.Name(), "failed to query schema table", err)
	}
	defer rows.Close()

	definitionErrors := facet.NewDefinitionErrors()
	var definitions []*facet.SchemaDefinition
	for rows.Next() {
		var typeKey string
		var definition []byte
		if err := rows.Scan(&typeKey, &definition); err != nil {
			return nil, facet.NewSourceUnavailableError(s.Name(), "failed to scan schema row", err)
		}
		def, ferr := parseValidatedDefinition(typeKey, definition)
		if ferr != nil {
			definitionErrors.Add(typeKey, ferr)
			continue
		}
		if def.TypeKey != typeKey {
			definitionErrors.Add(typeKey, facet.NewDefinitionInvalidError(typeKey,
				fmt.Sprintf("row key %q does not match document type_key %q", typeKey, def.TypeKey)))
			continue
		}
		definitions = append(definitions, def)
		zap.S().Debugw("loaded schema definition", "row", typeKey)
	}
	if err := rows.Err(); err != nil {
		return nil, facet.NewSourceUnavailableError(s.Name(), "error iterating schema rows", err)
	}

	if definitionErrors.HasErrors() {
		return nil, definitionErrors.ToError()
	}
	if len(definitions) == 0 {
		return nil, facet.NewSourceUnavailableError(s.Name(), "schema table is empty", nil)
	}
	return definitions, nil
}

// NewPostgresPool creates a connection pool from config and verifies it with
// a short ping. With UseIAM set, a DSQL connect token replaces the password;
// token generation failure falls back to the configured password.
func NewPostgresPool(ctx context.Context, cfg facet.PostgresConfig) (*pgxpool.Pool, error) {
	password := cfg.Password
	if cfg.UseIAM {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		if cfg.Region != "" {
			awsCfg.Region = cfg.Region
		}
		endpoint := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
		if token, err := auth.GenerateDbConnectAuthToken(ctx, endpoint, awsCfg.Region, awsCfg.Credentials); err == nil && token != "" {
			password = token
			zap.S().Infow("generated IAM auth token for Postgres connection")
		} else {
			zap.S().Warnw("failed to generate IAM auth token; falling back to configured password", "err", err)
		}
	}

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Username,
		password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.ConnConfig.ConnectTimeout = cfg.Timeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
