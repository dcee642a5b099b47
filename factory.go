package facet

import "encoding/json"

// Factory builds generic records from decoded JSON values. Schemas are
// resolved through the lookup the factory was constructed with, so embedded
// types can be registered in any order relative to their containers.
type Factory struct {
	registry SchemaLookup
}

// NewFactory creates a factory bound to a schema lookup.
func NewFactory(registry SchemaLookup) *Factory {
	return &Factory{registry: registry}
}

// Create builds a record of the given type from a decoded JSON value.
// A nil value yields a nil record without consulting the lookup at all.
//
// Properties absent from the input stay unpopulated on the record; a present
// null is stored as an explicit null. Embedded values of registered types are
// recursively built into records of their own, while reference-typed values
// are stored exactly as received.
func (f *Factory) Create(typeKey string, value any) (*GenericRecord, error) {
	if value == nil {
		return nil, nil
	}
	if f.registry == nil {
		return nil, NewSchemaNotFoundError(typeKey)
	}
	schema, err := f.registry.Get(typeKey)
	if err != nil {
		return nil, err
	}
	return f.build(schema, value)
}

// CreateFromJSON decodes raw JSON and builds a record from it.
func (f *Factory) CreateFromJSON(typeKey string, data []byte) (*GenericRecord, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, NewInvalidJSONError(typeKey, "failed to decode JSON input").WithCause(err)
	}
	return f.Create(typeKey, value)
}

func (f *Factory) build(schema *TypeSchema, value any) (*GenericRecord, error) {
	fields, ok := value.(map[string]any)
	if !ok {
		return nil, NewInvalidJSONError(schema.typeKey, "expected a JSON object")
	}
	record := NewGenericRecord(schema)
	for _, name := range schema.order {
		prop := schema.props[name]
		raw, exists := fields[name]
		if !exists {
			continue
		}
		if raw == nil {
			record.values[name] = nil
			continue
		}
		normalized, err := NormalizeCardinality(raw, prop.IsArray)
		if err != nil {
			if fe, isFacet := err.(*FacetError); isFacet {
				fe.WithSchema(schema.typeKey).WithProperty(name)
			}
			return nil, err
		}
		if prop.IsReference {
			// References cross an ownership boundary; the payload is kept
			// verbatim and never walked.
			record.values[name] = normalized
			continue
		}
		if IsPrimitiveType(prop.Type) {
			record.values[name] = normalized
			continue
		}
		nested, err := f.registry.Get(prop.Type)
		if err != nil {
			return nil, NewUnknownTypeError(schema.typeKey, name, prop.Type)
		}
		built, err := f.buildNested(nested, normalized)
		if err != nil {
			return nil, err
		}
		record.values[name] = built
	}
	return record, nil
}

func (f *Factory) buildNested(nested *TypeSchema, value any) (any, error) {
	if seq, isSeq := asSequence(value); isSeq {
		out := make([]any, 0, len(seq))
		for _, element := range seq {
			if element == nil {
				out = append(out, nil)
				continue
			}
			sub, err := f.build(nested, element)
			if err != nil {
				return nil, err
			}
			out = append(out, sub)
		}
		return out, nil
	}
	return f.build(nested, value)
}

// NormalizeCardinality reconciles a value's shape with the declared one.
// Producers are inconsistent about singleton collections, so this is the one
// place the ambiguity resolves:
//
//   - array expected, scalar given: wrapped into a one-element array
//   - array expected, array given: passed through unchanged
//   - scalar expected, one-element array given: unwrapped to the element
//   - scalar expected, any other array given: cardinality error
//
// nil passes through untouched.
func NormalizeCardinality(value any, expectArray bool) (any, error) {
	if value == nil {
		return nil, nil
	}
	seq, isSeq := asSequence(value)
	if expectArray {
		if isSeq {
			return value, nil
		}
		return []any{value}, nil
	}
	if !isSeq {
		return value, nil
	}
	if len(seq) == 1 {
		return seq[0], nil
	}
	return nil, NewArrayCardinalityError("", len(seq))
}
