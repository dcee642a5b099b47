package internal

import (
	"testing"

	"github.com/lychee-technology/facet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefinitionDocument_ArrayForm(t *testing.T) {
	doc := []byte(`{
		"type_key": "Child",
		"display_name": "Child",
		"identifier_properties": ["SessionID"],
		"properties": [
			{"name": "SessionID", "type": "double"},
			{"name": "Label", "type": "string", "is_array": false},
			{"name": "Locked", "type": "string", "read_only": true, "client_read_only": true}
		]
	}`)
	require.Nil(t, ValidateDefinitionDocument("child.json", doc))
}

func TestValidateDefinitionDocument_ObjectForm(t *testing.T) {
	doc := []byte(`{
		"type_key": "Parent",
		"identifier_properties": "Name",
		"properties": {
			"Name": {"type": "string"},
			"Children": {"type": "Child", "is_array": true},
			"ActiveChild": {"type": "Child", "is_reference": true}
		}
	}`)
	require.Nil(t, ValidateDefinitionDocument("parent.json", doc))
}

func TestValidateDefinitionDocument_Failures(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "malformed json",
			doc:  `{"type_key": "Broken"`,
		},
		{
			name: "missing type_key",
			doc:  `{"properties": [{"name": "A", "type": "string"}]}`,
		},
		{
			name: "missing properties",
			doc:  `{"type_key": "NoProps"}`,
		},
		{
			name: "array property without type",
			doc:  `{"type_key": "Bad", "properties": [{"name": "A"}]}`,
		},
		{
			name: "array property without name",
			doc:  `{"type_key": "Bad", "properties": [{"type": "string"}]}`,
		},
		{
			name: "object property without type",
			doc:  `{"type_key": "Bad", "properties": {"A": {"is_array": true}}}`,
		},
		{
			name: "numeric identifier_properties",
			doc:  `{"type_key": "Bad", "identifier_properties": 7, "properties": [{"name": "A", "type": "string"}]}`,
		},
		{
			name: "empty type_key",
			doc:  `{"type_key": "", "properties": [{"name": "A", "type": "string"}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ferr := ValidateDefinitionDocument(tt.name+".json", []byte(tt.doc))
			require.NotNil(t, ferr)
			assert.Equal(t, facet.ErrCodeDefinitionInvalid, ferr.Code)
		})
	}
}
