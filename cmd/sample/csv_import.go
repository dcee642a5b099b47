package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/lychee-technology/facet"
)

// ImportError describes a single CSV row that could not be turned into a
// record.
type ImportError struct {
	RowNumber int    // CSV row number (1-based, including header)
	Column    string // CSV column that caused the error
	RawValue  string // original CSV value
	Reason    string // error description
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("row %d, column %q: value %q - %s",
		e.RowNumber, e.Column, e.RawValue, e.Reason)
}

// ImportResult contains the results of a CSV import run.
type ImportResult struct {
	TotalRows    int
	SuccessCount int
	FailedCount  int
	Errors       []*ImportError
	Records      []*facet.GenericRecord
	Duration     time.Duration
}

// Summary returns a human-readable summary of the import result.
func (r *ImportResult) Summary() string {
	return fmt.Sprintf("Import completed: %d/%d rows successful, %d failed, duration: %v",
		r.SuccessCount, r.TotalRows, r.FailedCount, r.Duration)
}

// CSVImporter turns CSV rows into records of one schema. Every header column
// must name a declared primitive property; cell values are converted to the
// property's declared type before the record is built.
type CSVImporter struct {
	factory *facet.Factory
	schema  *facet.TypeSchema
	logger  *zap.SugaredLogger
}

// NewCSVImporter creates an importer targeting the given schema.
func NewCSVImporter(factory *facet.Factory, schema *facet.TypeSchema) *CSVImporter {
	return &CSVImporter{
		factory: factory,
		schema:  schema,
		logger:  zap.S(),
	}
}

// SetLogger sets a custom logger for the importer.
func (i *CSVImporter) SetLogger(logger *zap.SugaredLogger) {
	i.logger = logger
}

// ImportFromFile imports CSV data from a file.
func (i *CSVImporter) ImportFromFile(ctx context.Context, filePath string) (*ImportResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	return i.ImportFromReader(ctx, file)
}

// ImportFromReader imports CSV data from a reader. The first row must be a
// header naming schema properties. Rows that fail conversion or record
// construction are collected as errors; the rest become records.
func (i *CSVImporter) ImportFromReader(ctx context.Context, r io.Reader) (*ImportResult, error) {
	start := time.Now()
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make([]facet.PropertySchema, len(header))
	for idx, column := range header {
		prop, ok := i.schema.Property(column)
		if !ok {
			return nil, fmt.Errorf("column %q is not a property of schema %s", column, i.schema.TypeKey())
		}
		if !facet.IsPrimitiveType(prop.Type) {
			return nil, fmt.Errorf("column %q has embedded type %s; only primitive columns can be imported", column, prop.Type)
		}
		columns[idx] = prop
	}

	result := &ImportResult{}
	rowNumber := 1
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		rowNumber++
		result.TotalRows++

		values, convErr := i.convertRow(columns, row, rowNumber)
		if convErr != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, convErr)
			continue
		}

		record, err := i.factory.Create(i.schema.TypeKey(), values)
		if err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, &ImportError{
				RowNumber: rowNumber,
				Reason:    err.Error(),
			})
			continue
		}

		result.SuccessCount++
		result.Records = append(result.Records, record)
	}

	result.Duration = time.Since(start)
	i.logger.Infof("%s", result.Summary())
	return result, nil
}

// convertRow converts one CSV row into a property map. Empty cells leave the
// property unpopulated.
func (i *CSVImporter) convertRow(columns []facet.PropertySchema, row []string, rowNumber int) (map[string]any, *ImportError) {
	if len(row) != len(columns) {
		return nil, &ImportError{
			RowNumber: rowNumber,
			Reason:    fmt.Sprintf("expected %d cells, got %d", len(columns), len(row)),
		}
	}

	values := make(map[string]any, len(columns))
	for idx, prop := range columns {
		raw := row[idx]
		if raw == "" {
			continue
		}
		value, err := convertCell(prop.Type, raw)
		if err != nil {
			return nil, &ImportError{
				RowNumber: rowNumber,
				Column:    prop.Name,
				RawValue:  raw,
				Reason:    err.Error(),
			}
		}
		values[prop.Name] = value
	}
	return values, nil
}

// convertCell converts a CSV cell to the declared primitive type.
func convertCell(propType, raw string) (any, error) {
	switch propType {
	case facet.TypeString:
		return raw, nil
	case facet.TypeDouble:
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("not a number")
		}
		return parsed, nil
	case facet.TypeBoolean:
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("not a boolean")
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("unsupported type %s", propType)
	}
}
