package facet

import (
	"reflect"
	"testing"
)

func TestIsPrimitiveType(t *testing.T) {
	tests := []struct {
		name     string
		typeName string
		want     bool
	}{
		{"string", TypeString, true},
		{"double", TypeDouble, true},
		{"boolean", TypeBoolean, true},
		{"schema key", "Child", false},
		{"empty", "", false},
		{"case sensitive", "String", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPrimitiveType(tt.typeName); got != tt.want {
				t.Fatalf("IsPrimitiveType(%q) = %v, want %v", tt.typeName, got, tt.want)
			}
		})
	}
}

func TestNewTypeSchemaAccessors(t *testing.T) {
	schema := NewTypeSchema("Session", "Session Record", []string{"SessionID"}, []PropertySchema{
		{Name: "SessionID", Type: TypeDouble},
		{Name: "Label", Type: TypeString},
		{Name: "Active", Type: TypeBoolean},
	})

	if schema.TypeKey() != "Session" {
		t.Errorf("Expected type key 'Session', got %s", schema.TypeKey())
	}
	if schema.DisplayName() != "Session Record" {
		t.Errorf("Expected display name 'Session Record', got %s", schema.DisplayName())
	}
	if got := schema.PropertyNames(); !reflect.DeepEqual(got, []string{"SessionID", "Label", "Active"}) {
		t.Errorf("PropertyNames() = %v, want declaration order", got)
	}
	if got := schema.IdentifierProperties(); !reflect.DeepEqual(got, []string{"SessionID"}) {
		t.Errorf("IdentifierProperties() = %v, want [SessionID]", got)
	}

	prop, ok := schema.Property("Label")
	if !ok {
		t.Fatal("Expected property 'Label' to exist")
	}
	if prop.Type != TypeString {
		t.Errorf("Expected Label type %s, got %s", TypeString, prop.Type)
	}
	if _, ok := schema.Property("Missing"); ok {
		t.Error("Expected property 'Missing' to be absent")
	}
	if !schema.HasProperty("Active") {
		t.Error("Expected HasProperty('Active') to be true")
	}
}

func TestNewTypeSchemaDuplicateProperty(t *testing.T) {
	schema := NewTypeSchema("Dup", "Dup", nil, []PropertySchema{
		{Name: "Value", Type: TypeString},
		{Name: "Other", Type: TypeString},
		{Name: "Value", Type: TypeDouble},
	})

	if got := schema.PropertyNames(); !reflect.DeepEqual(got, []string{"Value", "Other"}) {
		t.Errorf("PropertyNames() = %v, want first position kept", got)
	}
	prop, _ := schema.Property("Value")
	if prop.Type != TypeDouble {
		t.Errorf("Expected later descriptor to win, got type %s", prop.Type)
	}
}

func TestPropertyNamesReturnsCopy(t *testing.T) {
	schema := NewTypeSchema("Copy", "Copy", []string{"ID"}, []PropertySchema{
		{Name: "ID", Type: TypeString},
	})

	names := schema.PropertyNames()
	names[0] = "mutated"
	if got := schema.PropertyNames(); got[0] != "ID" {
		t.Error("Expected PropertyNames to return an independent copy")
	}

	ids := schema.IdentifierProperties()
	ids[0] = "mutated"
	if got := schema.IdentifierProperties(); got[0] != "ID" {
		t.Error("Expected IdentifierProperties to return an independent copy")
	}
}
