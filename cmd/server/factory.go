package main

import (
	"context"
	"fmt"

	"github.com/lychee-technology/facet"
	"github.com/lychee-technology/facet/internal"
	"github.com/lychee-technology/facet/internal/journal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// buildLogger constructs the zap logger described by the logging config.
func buildLogger(cfg facet.LoggingConfig) *zap.Logger {
	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	if cfg.Format != "" {
		zapCfg.Encoding = cfg.Format
	}
	if cfg.Level != "" {
		if level, err := zapcore.ParseLevel(cfg.Level); err == nil {
			zapCfg.Level = zap.NewAtomicLevelAt(level)
		}
	}
	logger, err := zapCfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

// buildSchemaSource constructs the configured schema source. The returned
// cleanup releases whatever connection the source holds.
func buildSchemaSource(ctx context.Context, cfg *facet.Config) (internal.SchemaSource, func(), error) {
	noop := func() {}
	switch cfg.Sources.Mode {
	case "directory":
		return internal.NewFileSchemaSource(cfg.Sources.Directory.Path), noop, nil
	case "postgres":
		pool, err := internal.NewPostgresPool(ctx, cfg.Sources.Postgres)
		if err != nil {
			return nil, noop, fmt.Errorf("connect schema database: %w", err)
		}
		return internal.NewPostgresSchemaSource(pool, cfg.Sources.Postgres.Table), pool.Close, nil
	case "s3":
		client, err := internal.NewS3Client(ctx, cfg.Sources.S3)
		if err != nil {
			return nil, noop, fmt.Errorf("build s3 client: %w", err)
		}
		return internal.NewS3SchemaSource(client, cfg.Sources.S3.Bucket, cfg.Sources.S3.Prefix), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown schema source mode: %s", cfg.Sources.Mode)
	}
}

// openJournal opens the journal database and returns a writer over it.
func openJournal(ctx context.Context, cfg facet.JournalConfig) (*journal.Writer, func(), error) {
	db, err := journal.Open(ctx, journal.ConfigFrom(cfg))
	if err != nil {
		return nil, func() {}, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, func() {}, fmt.Errorf("ping journal database: %w", err)
	}
	return journal.NewWriter(db, cfg.Postgres.Table), func() { db.Close() }, nil
}
