package internal

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/lychee-technology/facet"
)

// definitionMetaSchema describes the shape of a schema definition document:
// identifier_properties may be a single string or a list, and properties may
// be an ordered array or a name-keyed object.
const definitionMetaSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["type_key", "properties"],
	"properties": {
		"type_key": {"type": "string", "minLength": 1},
		"display_name": {"type": "string"},
		"identifier_properties": {
			"oneOf": [
				{"type": "string"},
				{"type": "array", "items": {"type": "string"}}
			]
		},
		"properties": {
			"oneOf": [
				{"type": "array", "items": {"$ref": "#/$defs/property"}},
				{"type": "object", "additionalProperties": {"$ref": "#/$defs/propertyBody"}}
			]
		}
	},
	"$defs": {
		"property": {
			"type": "object",
			"required": ["name", "type"],
			"properties": {
				"name": {"type": "string", "minLength": 1},
				"type": {"type": "string", "minLength": 1},
				"is_array": {"type": "boolean"},
				"is_reference": {"type": "boolean"},
				"read_only": {"type": "boolean"},
				"client_read_only": {"type": "boolean"}
			}
		},
		"propertyBody": {
			"type": "object",
			"required": ["type"],
			"properties": {
				"type": {"type": "string", "minLength": 1},
				"is_array": {"type": "boolean"},
				"is_reference": {"type": "boolean"},
				"read_only": {"type": "boolean"},
				"client_read_only": {"type": "boolean"}
			}
		}
	}
}`

var (
	metaOnce     sync.Once
	metaResolved *jsonschema.Resolved
	metaErr      error
)

func resolvedMetaSchema() (*jsonschema.Resolved, error) {
	metaOnce.Do(func() {
		var schema jsonschema.Schema
		if err := json.Unmarshal([]byte(definitionMetaSchema), &schema); err != nil {
			metaErr = fmt.Errorf("failed to unmarshal into jsonschema.Schema: %w", err)
			return
		}
		metaResolved, metaErr = schema.Resolve(&jsonschema.ResolveOptions{})
	})
	return metaResolved, metaErr
}

// ValidateDefinitionDocument checks a raw definition document against the
// document meta-schema before it is parsed. Shape problems only; whether
// nested types resolve is a load-order question answered lazily at use time.
func ValidateDefinitionDocument(name string, data []byte) *facet.FacetError {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return facet.NewDefinitionInvalidError(name, "malformed definition document").WithCause(err)
	}

	resolved, err := resolvedMetaSchema()
	if err != nil {
		return facet.NewDefinitionInvalidError(name, "definition meta-schema did not compile").WithCause(err)
	}

	if err := resolved.Validate(doc); err != nil {
		return facet.NewDefinitionInvalidError(name,
			fmt.Sprintf("document does not match the definition schema: %v", err))
	}
	return nil
}
