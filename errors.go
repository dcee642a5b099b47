package facet

import (
	"fmt"
	"strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeCardinality ErrorType = "cardinality"
	ErrorTypePath        ErrorType = "path"
	ErrorTypeDefinition  ErrorType = "definition"
	ErrorTypeSource      ErrorType = "source"
	ErrorTypeJournal     ErrorType = "journal"
	ErrorTypeInternal    ErrorType = "internal"
)

// FacetError represents unified errors from the marshalling core and its
// supporting infrastructure.
type FacetError struct {
	Type     ErrorType      `json:"type"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Schema   string         `json:"schema,omitempty"`
	Property string         `json:"property,omitempty"`
	Path     string         `json:"path,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Cause    error          `json:"-"`
}

func (e *FacetError) Error() string {
	if e.Schema != "" && e.Property != "" {
		return fmt.Sprintf("[%s:%s] schema %s property '%s': %s",
			e.Type, e.Code, e.Schema, e.Property, e.Message)
	}
	if e.Schema != "" {
		return fmt.Sprintf("[%s:%s] schema %s: %s", e.Type, e.Code, e.Schema, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("[%s:%s] path '%s': %s", e.Type, e.Code, e.Path, e.Message)
	}
	if e.Property != "" {
		return fmt.Sprintf("[%s:%s] property '%s': %s", e.Type, e.Code, e.Property, e.Message)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

func (e *FacetError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to a FacetError
func (e *FacetError) WithDetails(details map[string]any) *FacetError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail adds a single detail to a FacetError
func (e *FacetError) WithDetail(key string, value any) *FacetError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause adds a cause to a FacetError
func (e *FacetError) WithCause(cause error) *FacetError {
	e.Cause = cause
	return e
}

// WithSchema adds schema context to a FacetError
func (e *FacetError) WithSchema(typeKey string) *FacetError {
	e.Schema = typeKey
	return e
}

// WithProperty adds property context to a FacetError
func (e *FacetError) WithProperty(property string) *FacetError {
	e.Property = property
	return e
}

// WithPath adds path context to a FacetError
func (e *FacetError) WithPath(path string) *FacetError {
	e.Path = path
	return e
}

// Error codes consolidated from all modules
const (
	// Registry and schema errors
	ErrCodeSchemaNotFound       = "SCHEMA_NOT_FOUND"
	ErrCodeInvalidSchema        = "INVALID_SCHEMA"
	ErrCodeNestedSchemaNotFound = "NESTED_SCHEMA_NOT_FOUND"
	ErrCodeNoIdentifierProperty = "NO_IDENTIFIER_PROPERTY"

	// Projection and creation errors
	ErrCodeMissingProperty          = "MISSING_PROPERTY"
	ErrCodeUnknownProperty          = "UNKNOWN_PROPERTY"
	ErrCodeUnknownType              = "UNKNOWN_TYPE"
	ErrCodeInvalidPropertySubset    = "INVALID_PROPERTY_SUBSET"
	ErrCodeArrayCardinalityMismatch = "ARRAY_CARDINALITY_MISMATCH"

	// Path errors
	ErrCodeInvalidPath       = "INVALID_PATH"
	ErrCodeIndexOutOfBounds  = "INDEX_OUT_OF_BOUNDS"
	ErrCodeInvalidPathSyntax = "INVALID_PATH_SYNTAX"
	ErrCodeInvalidIndex      = "INVALID_INDEX"

	// Definition document and schema source errors
	ErrCodeDefinitionInvalid = "DEFINITION_INVALID"
	ErrCodeSourceUnavailable = "SOURCE_UNAVAILABLE"

	// Bridge and dispatch errors
	ErrCodeUnknownEvent     = "UNKNOWN_EVENT"
	ErrCodeRootNotFound     = "ROOT_NOT_FOUND"
	ErrCodeReadOnlyProperty = "READ_ONLY_PROPERTY"

	// Journal errors
	ErrCodeJournalFailed = "JOURNAL_FAILED"

	ErrCodeInvalidJSON   = "INVALID_JSON"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// ============================================================================
// FacetError Constructors
// ============================================================================

// NewFacetError creates a new FacetError
func NewFacetError(errorType ErrorType, code, message string) *FacetError {
	return &FacetError{
		Type:    errorType,
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
}

// Registry error constructors

// NewSchemaNotFoundError creates a schema not found error
func NewSchemaNotFoundError(typeKey string) *FacetError {
	return &FacetError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeSchemaNotFound,
		Message: fmt.Sprintf("schema '%s' not found", typeKey),
		Schema:  typeKey,
		Details: make(map[string]any),
	}
}

// NewInvalidSchemaError creates an invalid schema error
func NewInvalidSchemaError(message string) *FacetError {
	return &FacetError{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeInvalidSchema,
		Message: message,
		Details: make(map[string]any),
	}
}

// NewNestedSchemaNotFoundError creates an error for an unresolvable nested type
func NewNestedSchemaNotFoundError(typeKey, property, nestedType string) *FacetError {
	return &FacetError{
		Type:     ErrorTypeNotFound,
		Code:     ErrCodeNestedSchemaNotFound,
		Message:  fmt.Sprintf("nested schema '%s' not found", nestedType),
		Schema:   typeKey,
		Property: property,
		Details: map[string]any{
			"nested_type": nestedType,
		},
	}
}

// NewNoIdentifierPropertyError creates an error for a reference target without identifiers
func NewNoIdentifierPropertyError(typeKey string) *FacetError {
	return &FacetError{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeNoIdentifierProperty,
		Message: fmt.Sprintf("schema '%s' declares no identifier properties", typeKey),
		Schema:  typeKey,
		Details: make(map[string]any),
	}
}

// Projection and creation error constructors

// NewMissingPropertyError creates a missing property error
func NewMissingPropertyError(typeKey, property string) *FacetError {
	return &FacetError{
		Type:     ErrorTypeValidation,
		Code:     ErrCodeMissingProperty,
		Message:  "source object has no such property",
		Schema:   typeKey,
		Property: property,
		Details:  make(map[string]any),
	}
}

// NewUnknownPropertyError creates an unknown property error
func NewUnknownPropertyError(typeKey, property string) *FacetError {
	return &FacetError{
		Type:     ErrorTypeValidation,
		Code:     ErrCodeUnknownProperty,
		Message:  "property is not declared by the schema",
		Schema:   typeKey,
		Property: property,
		Details:  make(map[string]any),
	}
}

// NewUnknownTypeError creates an unknown type error
func NewUnknownTypeError(typeKey, property, declaredType string) *FacetError {
	return &FacetError{
		Type:     ErrorTypeValidation,
		Code:     ErrCodeUnknownType,
		Message:  fmt.Sprintf("type '%s' is neither primitive nor registered", declaredType),
		Schema:   typeKey,
		Property: property,
		Details: map[string]any{
			"declared_type": declaredType,
		},
	}
}

// NewInvalidPropertySubsetError creates an invalid property subset error
func NewInvalidPropertySubsetError(typeKey string, missing []string) *FacetError {
	return &FacetError{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeInvalidPropertySubset,
		Message: fmt.Sprintf("requested properties not in schema: %v", missing),
		Schema:  typeKey,
		Details: map[string]any{
			"missing": missing,
		},
	}
}

// NewArrayCardinalityError creates an array cardinality mismatch error.
// size is the length of the offending array.
func NewArrayCardinalityError(property string, size int) *FacetError {
	message := fmt.Sprintf("expected scalar, got array of size %d", size)
	if size == 0 {
		message = "expected scalar, got empty array"
	}
	return &FacetError{
		Type:     ErrorTypeCardinality,
		Code:     ErrCodeArrayCardinalityMismatch,
		Message:  message,
		Property: property,
		Details: map[string]any{
			"size": size,
		},
	}
}

// Path error constructors

// NewInvalidPathError creates an invalid path error
func NewInvalidPathError(path, property string) *FacetError {
	return &FacetError{
		Type:     ErrorTypePath,
		Code:     ErrCodeInvalidPath,
		Message:  fmt.Sprintf("node has no property '%s'", property),
		Path:     path,
		Property: property,
		Details:  make(map[string]any),
	}
}

// NewIndexOutOfBoundsError creates an index out of bounds error
func NewIndexOutOfBoundsError(path string, index, length int) *FacetError {
	return &FacetError{
		Type:    ErrorTypePath,
		Code:    ErrCodeIndexOutOfBounds,
		Message: fmt.Sprintf("index %d out of bounds for sequence of length %d", index, length),
		Path:    path,
		Details: map[string]any{
			"index":  index,
			"length": length,
		},
	}
}

// NewInvalidPathSyntaxError creates an invalid path syntax error
func NewInvalidPathSyntaxError(path, message string) *FacetError {
	return &FacetError{
		Type:    ErrorTypePath,
		Code:    ErrCodeInvalidPathSyntax,
		Message: message,
		Path:    path,
		Details: make(map[string]any),
	}
}

// NewInvalidIndexError creates an invalid index error
func NewInvalidIndexError(path string, index int) *FacetError {
	return &FacetError{
		Type:    ErrorTypePath,
		Code:    ErrCodeInvalidIndex,
		Message: fmt.Sprintf("index %d is not positive (indices are 1-based)", index),
		Path:    path,
		Details: map[string]any{
			"index": index,
		},
	}
}

// Definition and source error constructors

// NewDefinitionInvalidError creates a definition document error
func NewDefinitionInvalidError(name, message string) *FacetError {
	return &FacetError{
		Type:    ErrorTypeDefinition,
		Code:    ErrCodeDefinitionInvalid,
		Message: message,
		Details: map[string]any{
			"definition": name,
		},
	}
}

// NewSourceUnavailableError creates a schema source error
func NewSourceUnavailableError(source, message string, cause error) *FacetError {
	return &FacetError{
		Type:    ErrorTypeSource,
		Code:    ErrCodeSourceUnavailable,
		Message: message,
		Cause:   cause,
		Details: map[string]any{
			"source": source,
		},
	}
}

// Bridge and dispatch error constructors

// NewUnknownEventError creates an unknown event error
func NewUnknownEventError(eventType string) *FacetError {
	return &FacetError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeUnknownEvent,
		Message: fmt.Sprintf("no handler registered for event '%s'", eventType),
		Details: map[string]any{
			"event_type": eventType,
		},
	}
}

// NewRootNotFoundError creates a root object lookup error
func NewRootNotFoundError(name string) *FacetError {
	return &FacetError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeRootNotFound,
		Message: fmt.Sprintf("no root object named '%s'", name),
		Details: map[string]any{
			"root": name,
		},
	}
}

// NewReadOnlyPropertyError creates a read-only write rejection error
func NewReadOnlyPropertyError(typeKey, property string) *FacetError {
	return &FacetError{
		Type:     ErrorTypeValidation,
		Code:     ErrCodeReadOnlyProperty,
		Message:  "property is read-only for clients",
		Schema:   typeKey,
		Property: property,
		Details:  make(map[string]any),
	}
}

// NewInvalidJSONError creates an error for input that is not the JSON shape
// the schema calls for
func NewInvalidJSONError(typeKey string, message string) *FacetError {
	return NewFacetError(ErrorTypeValidation, ErrCodeInvalidJSON, message).
		WithSchema(typeKey)
}

// NewJournalError creates a journal error
func NewJournalError(message string, cause error) *FacetError {
	return &FacetError{
		Type:    ErrorTypeJournal,
		Code:    ErrCodeJournalFailed,
		Message: message,
		Cause:   cause,
		Details: make(map[string]any),
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *FacetError {
	return &FacetError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternalError,
		Message: message,
		Cause:   cause,
		Details: make(map[string]any),
	}
}

// ============================================================================
// DefinitionErrors Type and Constructors
// ============================================================================

// DefinitionError pairs a failed definition document with its source, so a
// bulk load can report which file or row was broken.
type DefinitionError struct {
	Source string      `json:"source"`
	Err    *FacetError `json:"error"`
}

// DefinitionErrors collects per-document failures from a bulk schema load so
// every broken definition is reported at once.
type DefinitionErrors struct {
	Errors []DefinitionError `json:"errors"`
}

// Error implements the error interface for DefinitionErrors
func (de *DefinitionErrors) Error() string {
	if len(de.Errors) == 0 {
		return "no definition errors"
	}
	if len(de.Errors) == 1 {
		return fmt.Sprintf("%s: %s", de.Errors[0].Source, de.Errors[0].Err.Error())
	}
	sources := make([]string, len(de.Errors))
	for i, e := range de.Errors {
		sources[i] = e.Source
	}
	return fmt.Sprintf("%d definition documents failed: %s",
		len(de.Errors), strings.Join(sources, ", "))
}

// Add adds a new error to the collection
func (de *DefinitionErrors) Add(source string, err *FacetError) {
	de.Errors = append(de.Errors, DefinitionError{Source: source, Err: err})
}

// HasErrors returns true if there are any errors
func (de *DefinitionErrors) HasErrors() bool {
	return len(de.Errors) > 0
}

// ToError returns the collection as an error if non-empty, nil otherwise
func (de *DefinitionErrors) ToError() error {
	if de.HasErrors() {
		return de
	}
	return nil
}

// NewDefinitionErrors creates a new DefinitionErrors instance
func NewDefinitionErrors() *DefinitionErrors {
	return &DefinitionErrors{
		Errors: make([]DefinitionError, 0),
	}
}

// ============================================================================
// Error checking utilities
// ============================================================================

// IsSchemaNotFound checks if an error is a schema not found error
func IsSchemaNotFound(err error) bool {
	if fe, ok := err.(*FacetError); ok {
		return fe.Code == ErrCodeSchemaNotFound
	}
	return false
}

// IsInvalidSchema checks if an error is an invalid schema error
func IsInvalidSchema(err error) bool {
	if fe, ok := err.(*FacetError); ok {
		return fe.Code == ErrCodeInvalidSchema
	}
	return false
}

// IsNestedSchemaNotFound checks if an error is a nested schema not found error
func IsNestedSchemaNotFound(err error) bool {
	if fe, ok := err.(*FacetError); ok {
		return fe.Code == ErrCodeNestedSchemaNotFound
	}
	return false
}

// IsNoIdentifierProperty checks if an error is a missing identifier declaration error
func IsNoIdentifierProperty(err error) bool {
	if fe, ok := err.(*FacetError); ok {
		return fe.Code == ErrCodeNoIdentifierProperty
	}
	return false
}

// IsMissingProperty checks if an error is a missing property error
func IsMissingProperty(err error) bool {
	if fe, ok := err.(*FacetError); ok {
		return fe.Code == ErrCodeMissingProperty
	}
	return false
}

// IsUnknownProperty checks if an error is an unknown property error
func IsUnknownProperty(err error) bool {
	if fe, ok := err.(*FacetError); ok {
		return fe.Code == ErrCodeUnknownProperty
	}
	return false
}

// IsUnknownType checks if an error is an unknown type error
func IsUnknownType(err error) bool {
	if fe, ok := err.(*FacetError); ok {
		return fe.Code == ErrCodeUnknownType
	}
	return false
}

// IsInvalidPropertySubset checks if an error is an invalid subset error
func IsInvalidPropertySubset(err error) bool {
	if fe, ok := err.(*FacetError); ok {
		return fe.Code == ErrCodeInvalidPropertySubset
	}
	return false
}

// IsArrayCardinalityMismatch checks if an error is a cardinality error
func IsArrayCardinalityMismatch(err error) bool {
	if fe, ok := err.(*FacetError); ok {
		return fe.Code == ErrCodeArrayCardinalityMismatch
	}
	return false
}

// IsInvalidPath checks if an error is an invalid path error
func IsInvalidPath(err error) bool {
	if fe, ok := err.(*FacetError); ok {
		return fe.Code == ErrCodeInvalidPath
	}
	return false
}

// IsIndexOutOfBounds checks if an error is an index out of bounds error
func IsIndexOutOfBounds(err error) bool {
	if fe, ok := err.(*FacetError); ok {
		return fe.Code == ErrCodeIndexOutOfBounds
	}
	return false
}

// IsInvalidPathSyntax checks if an error is a path syntax error
func IsInvalidPathSyntax(err error) bool {
	if fe, ok := err.(*FacetError); ok {
		return fe.Code == ErrCodeInvalidPathSyntax
	}
	return false
}

// IsInvalidIndex checks if an error is an invalid index error
func IsInvalidIndex(err error) bool {
	if fe, ok := err.(*FacetError); ok {
		return fe.Code == ErrCodeInvalidIndex
	}
	return false
}

// IsNotFoundError checks if an error belongs to the not_found category
func IsNotFoundError(err error) bool {
	if fe, ok := err.(*FacetError); ok {
		return fe.Type == ErrorTypeNotFound
	}
	return false
}

// IsPathError checks if an error belongs to the path category
func IsPathError(err error) bool {
	if fe, ok := err.(*FacetError); ok {
		return fe.Type == ErrorTypePath
	}
	return false
}
