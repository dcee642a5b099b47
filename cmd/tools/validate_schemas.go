package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/lychee-technology/facet/internal"
)

func runValidateSchemas(args []string) error {
	flags := flag.NewFlagSet("validate-schemas", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: facet-tools validate-schemas [options]")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	schemaDir := flags.String("schema-dir", getenvDefault("SCHEMA_DIR", "./schemas"), "Directory containing schema definition JSON files")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	files, err := listDefinitionFiles(*schemaDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no definition files found in %s", *schemaDir)
	}

	failed := 0
	for _, file := range files {
		path := filepath.Join(*schemaDir, file)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if verr := internal.ValidateDefinitionDocument(file, data); verr != nil {
			failed++
			zap.S().Errorw("definition invalid", "file", file, "code", verr.Code, "error", verr.Message)
			continue
		}
		fmt.Printf("ok: %s\n", file)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d definitions failed validation", failed, len(files))
	}
	fmt.Printf("All %d definitions valid.\n", len(files))
	return nil
}

// listDefinitionFiles returns the JSON file names in dir, sorted.
func listDefinitionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read schema directory(%s): %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".json") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
