package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/lychee-technology/facet"
	"github.com/lychee-technology/facet/internal"
)

// Built-in definitions used when no schema directory is given. Address uses
// the object property form, the other two the array form; both are accepted.
const addressDoc = `{
	"type_key": "Address",
	"display_name": "Postal Address",
	"properties": {
		"Street": {"type": "string"},
		"City":   {"type": "string"},
		"Zip":    {"type": "string"}
	}
}`

const customerDoc = `{
	"type_key": "Customer",
	"display_name": "Customer",
	"identifier_properties": "CustomerID",
	"properties": [
		{"name": "CustomerID", "type": "double"},
		{"name": "Name", "type": "string"},
		{"name": "Active", "type": "boolean"},
		{"name": "Scores", "type": "double", "is_array": true},
		{"name": "Addresses", "type": "Address", "is_array": true},
		{"name": "Referral", "type": "Customer", "is_reference": true}
	]
}`

const contactDoc = `{
	"type_key": "Contact",
	"display_name": "Contact",
	"identifier_properties": "ContactID",
	"properties": [
		{"name": "ContactID", "type": "double"},
		{"name": "Name", "type": "string"},
		{"name": "Email", "type": "string"},
		{"name": "Age", "type": "double"},
		{"name": "Active", "type": "boolean"}
	]
}`

func main() {
	csvFile := flag.String("csv", "", "Path to a CSV file to import (optional)")
	csvSchema := flag.String("csv-schema", "Contact", "Target schema for the CSV import")
	schemaDir := flag.String("schema-dir", "", "Directory containing definition files (defaults to built-in demo schemas)")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	flag.Parse()

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	if *verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.Development = true
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Errorf("failed to build logger: %w", err))
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	ctx := context.Background()

	registry := facet.NewSchemaRegistry()
	if *schemaDir != "" {
		sugar.Infof("Loading definitions from: %s", *schemaDir)
		keys, err := internal.LoadIntoRegistry(ctx, internal.NewFileSchemaSource(*schemaDir), registry)
		if err != nil {
			sugar.Fatalf("Failed to load definitions: %v", err)
		}
		sugar.Infof("Loaded %d definitions", len(keys))
	} else {
		for _, doc := range []string{addressDoc, customerDoc, contactDoc} {
			if err := registerDocument(registry, doc); err != nil {
				sugar.Fatalf("Failed to register built-in definition: %v", err)
			}
		}
	}
	sugar.Infof("Registered schemas: %v", registry.ListSchemas())

	factory := facet.NewFactory(registry)

	// Build a record. Scores arrives as a bare scalar and is normalized into
	// a single-element array; the referral is stored as received.
	sugar.Info("Creating a Customer record...")
	customer, err := factory.Create("Customer", map[string]any{
		"CustomerID": float64(1),
		"Name":       "Acme Corp",
		"Active":     true,
		"Scores":     92.5,
		"Addresses": []any{
			map[string]any{"Street": "1 Main St", "City": "Springfield", "Zip": "11111"},
			map[string]any{"Street": "2 Side St", "City": "Shelbyville", "Zip": "22222"},
		},
		"Referral": map[string]any{"CustomerID": float64(7), "Name": "Referrer Inc"},
	})
	if err != nil {
		sugar.Fatalf("Create failed: %v", err)
	}

	schema, err := registry.Get("Customer")
	if err != nil {
		sugar.Fatalf("Schema lookup failed: %v", err)
	}

	sugar.Info("Projecting the full record (note the flattened referral):")
	tree, err := facet.Project(customer, schema)
	if err != nil {
		sugar.Fatalf("Project failed: %v", err)
	}
	printJSON(sugar, tree)

	sugar.Info("Projecting a subset (Name, Scores):")
	subset, err := facet.Project(customer, schema, "Name", "Scores")
	if err != nil {
		sugar.Fatalf("Subset projection failed: %v", err)
	}
	printJSON(sugar, subset)

	// Path indices are 1-based.
	sugar.Info("Resolving paths against the record...")
	city, err := facet.ResolvePath("Addresses[2].City", customer)
	if err != nil {
		sugar.Fatalf("Resolve failed: %v", err)
	}
	sugar.Infof("  Addresses[2].City = %v", city)
	score, err := facet.ResolvePath("Scores[1]", customer)
	if err != nil {
		sugar.Fatalf("Resolve failed: %v", err)
	}
	sugar.Infof("  Scores[1] = %v (normalized from a scalar)", score)

	sugar.Info("Writing through a path...")
	if err := facet.SetValueAtPath(customer, "Addresses[1].City", "Osaka"); err != nil {
		sugar.Fatalf("Set failed: %v", err)
	}
	city, err = facet.ResolvePath("Addresses[1].City", customer)
	if err != nil {
		sugar.Fatalf("Resolve after set failed: %v", err)
	}
	sugar.Infof("  Addresses[1].City = %v", city)

	// The same operations through the bridge and its event table.
	sugar.Info("Dispatching events against a registered root...")
	bridge := internal.NewBridge(registry, nil)
	if err := bridge.RegisterRoot("customer", "Customer", customer); err != nil {
		sugar.Fatalf("Register root failed: %v", err)
	}
	dispatcher := internal.NewBridgeDispatcher(bridge)

	setResult, err := dispatcher.Dispatch(ctx, internal.Event{
		Type:    "set",
		Root:    "customer",
		Path:    "Name",
		Payload: "Acme Holdings",
	})
	if err != nil {
		sugar.Fatalf("Set event failed: %v", err)
	}
	sugar.Infof("  set event result: %v", setResult)

	resolved, err := dispatcher.Dispatch(ctx, internal.Event{
		Type: "resolve",
		Root: "customer",
		Path: "Name",
	})
	if err != nil {
		sugar.Fatalf("Resolve event failed: %v", err)
	}
	sugar.Infof("  resolve event result: %v", resolved)

	if *csvFile != "" {
		runCSVImport(ctx, sugar, registry, factory, *csvFile, *csvSchema)
	}
}

func runCSVImport(ctx context.Context, sugar *zap.SugaredLogger, registry *facet.SchemaRegistry, factory *facet.Factory, csvFile, typeKey string) {
	schema, err := registry.Get(typeKey)
	if err != nil {
		sugar.Fatalf("CSV schema %q not found: %v", typeKey, err)
	}

	sugar.Infof("Importing CSV from: %s (schema %s)", csvFile, typeKey)
	importer := NewCSVImporter(factory, schema)
	importer.SetLogger(sugar.Named("Import"))

	result, err := importer.ImportFromFile(ctx, csvFile)
	if err != nil {
		sugar.Fatalf("Import failed: %v", err)
	}

	sugar.Infof("  Total rows:  %d", result.TotalRows)
	sugar.Infof("  Successful:  %d", result.SuccessCount)
	sugar.Infof("  Failed:      %d", result.FailedCount)
	for i, importErr := range result.Errors {
		if i >= 10 {
			sugar.Infof("  ... and %d more errors", len(result.Errors)-10)
			break
		}
		sugar.Infof("  [%d] %s", i+1, importErr.Error())
	}

	if len(result.Records) > 0 {
		sugar.Info("First imported record:")
		tree, err := facet.Project(result.Records[0], schema)
		if err != nil {
			sugar.Fatalf("Project imported record failed: %v", err)
		}
		printJSON(sugar, tree)
	}

	if result.FailedCount > 0 {
		os.Exit(1)
	}
}

func registerDocument(registry *facet.SchemaRegistry, doc string) error {
	var def facet.SchemaDefinition
	if err := json.Unmarshal([]byte(doc), &def); err != nil {
		return err
	}
	schema, err := def.TypeSchema()
	if err != nil {
		return err
	}
	return registry.Register(schema)
}

func printJSON(sugar *zap.SugaredLogger, v any) {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		sugar.Errorf("marshal failed: %v", err)
		return
	}
	sugar.Info("\n" + string(encoded))
}
