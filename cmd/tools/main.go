package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Errorf("failed to set up logger: %w", err))
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate-schemas":
		if err := runValidateSchemas(os.Args[2:]); err != nil {
			sugar.Fatalf("validate-schemas: %v", err)
		}
	case "upload-schemas":
		if err := runUploadSchemas(os.Args[2:]); err != nil {
			sugar.Fatalf("upload-schemas: %v", err)
		}
	case "init-journal":
		if err := runInitJournal(os.Args[2:]); err != nil {
			sugar.Fatalf("init-journal: %v", err)
		}
	case "flush-journal":
		if err := runFlushJournal(os.Args[2:]); err != nil {
			sugar.Fatalf("flush-journal: %v", err)
		}
	default:
		sugar.Errorf("unknown command %q", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	logger := zap.S()
	logger.Info("Usage: facet-tools <command> [options]")
	logger.Info("")
	logger.Info("Commands:")
	logger.Info("  validate-schemas   Validate every schema definition document in a directory")
	logger.Info("  upload-schemas     Upload schema definition documents to an S3 bucket")
	logger.Info("  init-journal       Create the schema and change journal tables in PostgreSQL")
	logger.Info("  flush-journal      Export unflushed journal rows to Parquet on S3 and mark them")
}
