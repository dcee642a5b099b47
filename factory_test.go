package facet

import (
	"reflect"
	"strings"
	"testing"
)

func TestNormalizeCardinality(t *testing.T) {
	tests := []struct {
		name        string
		value       any
		expectArray bool
		want        any
		wantErr     bool
	}{
		{"scalar for array wraps", "x", true, []any{"x"}, false},
		{"array for array unchanged", []any{"x", "y"}, true, []any{"x", "y"}, false},
		{"singleton for scalar unwraps", []any{"x"}, false, "x", false},
		{"scalar for scalar unchanged", "x", false, "x", false},
		{"empty array for scalar fails", []any{}, false, nil, true},
		{"long array for scalar fails", []any{"x", "y"}, false, nil, true},
		{"nil passes through", nil, true, nil, false},
		{"object is a scalar", map[string]any{"a": 1}, false, map[string]any{"a": 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeCardinality(tt.value, tt.expectArray)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected cardinality error")
				}
				if !IsArrayCardinalityMismatch(err) {
					t.Errorf("Expected ARRAY_CARDINALITY_MISMATCH, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeCardinality() failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeCardinality() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestNormalizeCardinalityMessages(t *testing.T) {
	_, err := NormalizeCardinality([]any{}, false)
	if err == nil || !strings.Contains(err.Error(), "expected scalar, got empty array") {
		t.Errorf("Expected empty-array message, got %v", err)
	}

	_, err = NormalizeCardinality([]any{1, 2, 3}, false)
	if err == nil || !strings.Contains(err.Error(), "expected scalar, got array of size 3") {
		t.Errorf("Expected sized-array message, got %v", err)
	}
}

func TestFactoryCreateNilShortCircuit(t *testing.T) {
	// nil input must not touch the lookup at all.
	factory := NewFactory(nil)
	record, err := factory.Create("Anything", nil)
	if err != nil {
		t.Fatalf("Create(nil) failed: %v", err)
	}
	if record != nil {
		t.Errorf("Expected nil record for nil input, got %v", record)
	}
}

func TestFactoryCreateSchemaNotFound(t *testing.T) {
	factory := NewFactory(NewSchemaRegistry())
	_, err := factory.Create("Ghost", map[string]any{})
	if err == nil {
		t.Fatal("Expected error for unregistered type")
	}
	if !IsSchemaNotFound(err) {
		t.Errorf("Expected SCHEMA_NOT_FOUND, got %v", err)
	}
}

func TestFactoryCreatePrimitivesAndAbsence(t *testing.T) {
	registry := newSessionRegistry(t)
	factory := NewFactory(registry)

	record, err := factory.Create("Child", map[string]any{"SessionID": float64(101)})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	value, populated := record.Value("SessionID")
	if !populated || value != float64(101) {
		t.Errorf("Value('SessionID') = %v, %v; want 101, true", value, populated)
	}
	if _, populated := record.Value("Label"); populated {
		t.Error("Expected absent JSON field to stay unpopulated")
	}
}

func TestFactoryCreateExplicitNull(t *testing.T) {
	registry := newSessionRegistry(t)
	factory := NewFactory(registry)

	record, err := factory.Create("Child", map[string]any{
		"SessionID": float64(101),
		"Label":     nil,
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	value, populated := record.Value("Label")
	if !populated || value != nil {
		t.Errorf("Expected explicit null to be stored, got %v, %v", value, populated)
	}
}

func TestFactoryCreateNormalizesShapes(t *testing.T) {
	registry := newSessionRegistry(t)
	factory := NewFactory(registry)

	// Children declared as array but given a single embedded object.
	record, err := factory.Create("Parent", map[string]any{
		"Children": map[string]any{"SessionID": float64(101)},
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	children, _ := record.Value("Children")
	seq, ok := children.([]any)
	if !ok || len(seq) != 1 {
		t.Fatalf("Expected scalar to be wrapped into one-element array, got %#v", children)
	}
	child, ok := seq[0].(*GenericRecord)
	if !ok {
		t.Fatalf("Expected embedded element to be a record, got %T", seq[0])
	}
	if v, _ := child.Value("SessionID"); v != float64(101) {
		t.Errorf("Expected nested SessionID 101, got %v", v)
	}
}

func TestFactoryCreateUnwrapsSingleton(t *testing.T) {
	registry := newSessionRegistry(t)
	factory := NewFactory(registry)

	record, err := factory.Create("Child", map[string]any{
		"SessionID": []any{float64(101)},
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if v, _ := record.Value("SessionID"); v != float64(101) {
		t.Errorf("Expected singleton to unwrap to scalar, got %v", v)
	}
}

func TestFactoryCreateCardinalityMismatch(t *testing.T) {
	registry := newSessionRegistry(t)
	factory := NewFactory(registry)

	tests := []struct {
		name  string
		value []any
	}{
		{"empty array for scalar", []any{}},
		{"long array for scalar", []any{float64(1), float64(2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.Create("Child", map[string]any{"SessionID": tt.value})
			if err == nil {
				t.Fatal("Expected cardinality error")
			}
			facetErr, ok := err.(*FacetError)
			if !ok || facetErr.Code != ErrCodeArrayCardinalityMismatch {
				t.Fatalf("Expected ARRAY_CARDINALITY_MISMATCH, got %v", err)
			}
			if facetErr.Property != "SessionID" {
				t.Errorf("Expected property context SessionID, got %s", facetErr.Property)
			}
		})
	}
}

func TestFactoryCreateKeepsReferencesRaw(t *testing.T) {
	registry := newSessionRegistry(t)
	factory := NewFactory(registry)

	record, err := factory.Create("Parent", map[string]any{
		"SelectedChildren": []any{map[string]any{"SessionID": float64(101)}},
		"ActiveChild":      float64(102),
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	selected, _ := record.Value("SelectedChildren")
	want := []any{map[string]any{"SessionID": float64(101)}}
	if !reflect.DeepEqual(selected, want) {
		t.Errorf("Expected reference array stored raw, got %#v", selected)
	}

	// A bare identifier scalar is also legal; it is stored untouched.
	active, _ := record.Value("ActiveChild")
	if active != float64(102) {
		t.Errorf("Expected raw identifier scalar, got %#v", active)
	}
}

func TestFactoryCreateUnknownType(t *testing.T) {
	registry := NewSchemaRegistry()
	scalarParent := NewTypeSchema("ScalarParent", "ScalarParent", nil, []PropertySchema{
		{Name: "Mystery", Type: "Unregistered"},
	})
	arrayParent := NewTypeSchema("ArrayParent", "ArrayParent", nil, []PropertySchema{
		{Name: "Mysteries", Type: "Unregistered", IsArray: true},
	})
	for _, schema := range []*TypeSchema{scalarParent, arrayParent} {
		if err := registry.Register(schema); err != nil {
			t.Fatalf("Register() failed: %v", err)
		}
	}
	factory := NewFactory(registry)

	tests := []struct {
		name    string
		typeKey string
		source  map[string]any
	}{
		{"scalar property", "ScalarParent", map[string]any{"Mystery": map[string]any{"a": 1}}},
		{"array property", "ArrayParent", map[string]any{"Mysteries": []any{map[string]any{"a": 1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.Create(tt.typeKey, tt.source)
			if err == nil {
				t.Fatal("Expected error for unknown declared type")
			}
			facetErr, ok := err.(*FacetError)
			if !ok || facetErr.Code != ErrCodeUnknownType {
				t.Errorf("Expected UNKNOWN_TYPE, got %v", err)
			}
		})
	}
}

func TestFactoryCreateRejectsNonObject(t *testing.T) {
	registry := newSessionRegistry(t)
	factory := NewFactory(registry)

	_, err := factory.Create("Child", "just a string")
	if err == nil {
		t.Fatal("Expected error for non-object input")
	}
	facetErr, ok := err.(*FacetError)
	if !ok || facetErr.Code != ErrCodeInvalidJSON {
		t.Errorf("Expected INVALID_JSON, got %v", err)
	}
}

func TestFactoryCreateFromJSON(t *testing.T) {
	registry := newSessionRegistry(t)
	factory := NewFactory(registry)

	record, err := factory.CreateFromJSON("Child", []byte(`{"SessionID": 101, "Label": "first"}`))
	if err != nil {
		t.Fatalf("CreateFromJSON() failed: %v", err)
	}
	if v, _ := record.Value("Label"); v != "first" {
		t.Errorf("Expected Label 'first', got %v", v)
	}

	_, err = factory.CreateFromJSON("Child", []byte(`{not json`))
	if err == nil {
		t.Fatal("Expected error for malformed JSON")
	}
	facetErr, ok := err.(*FacetError)
	if !ok || facetErr.Code != ErrCodeInvalidJSON {
		t.Errorf("Expected INVALID_JSON, got %v", err)
	}
}

func TestProjectCreateRoundTrip(t *testing.T) {
	registry := newSessionRegistry(t)
	factory := NewFactory(registry)
	schema, _ := registry.Get("Parent")

	projected, err := Project(newParentSource(), schema)
	if err != nil {
		t.Fatalf("Project() failed: %v", err)
	}

	record, err := factory.Create("Parent", projected)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	reprojected, err := Project(record, schema)
	if err != nil {
		t.Fatalf("Project() of rebuilt record failed: %v", err)
	}
	if !reflect.DeepEqual(projected, reprojected) {
		t.Errorf("Round trip drifted:\n first: %#v\nsecond: %#v", projected, reprojected)
	}
}
