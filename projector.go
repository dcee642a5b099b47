package facet

// Project turns a live source object into a JSON-compatible tree according
// to the schema. With no property names the full schema projects in
// declaration order; otherwise exactly the named subset. The source may be a
// *GenericRecord, a map[string]any, or anything implementing PropertyReader.
func Project(source any, schema *TypeSchema, properties ...string) (map[string]any, error) {
	if schema == nil {
		return nil, NewInvalidSchemaError("schema is nil")
	}
	names := schema.order
	if len(properties) > 0 {
		var missing []string
		for _, name := range properties {
			if !schema.HasProperty(name) {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return nil, NewInvalidPropertySubsetError(schema.typeKey, missing)
		}
		names = properties
	}

	result := make(map[string]any, len(names))
	for _, name := range names {
		prop, _ := schema.Property(name)
		value, state := lookupProperty(source, name)
		if state == propNoAccessor {
			return nil, NewMissingPropertyError(schema.typeKey, name)
		}
		// Absent stays absent, an explicit empty value stays empty;
		// normalization is skipped for both.
		if state == propAbsent {
			continue
		}
		if value == nil {
			result[name] = nil
			continue
		}
		projected, err := projectValue(schema, prop, value)
		if err != nil {
			return nil, err
		}
		result[name] = projected
	}
	return result, nil
}

// projectValue projects one property value. Array cardinality passes through
// as-is on this direction: the value's own shape decides element iteration,
// never the schema's IsArray flag.
func projectValue(schema *TypeSchema, prop PropertySchema, value any) (any, error) {
	if IsPrimitiveType(prop.Type) {
		return value, nil
	}

	if prop.IsReference {
		nested, ok := schema.nestedSchema(prop.Type)
		if !ok {
			return nil, NewNestedSchemaNotFoundError(schema.typeKey, prop.Name, prop.Type)
		}
		if len(nested.identifiers) == 0 {
			return nil, NewNoIdentifierPropertyError(nested.typeKey)
		}
		if seq, isSeq := asSequence(value); isSeq {
			out := make([]any, 0, len(seq))
			for _, element := range seq {
				if element == nil {
					out = append(out, nil)
					continue
				}
				flat, err := flattenReference(nested, element)
				if err != nil {
					return nil, err
				}
				out = append(out, flat)
			}
			return out, nil
		}
		return flattenReference(nested, value)
	}

	nested, ok := schema.nestedSchema(prop.Type)
	if !ok {
		return nil, NewUnknownTypeError(schema.typeKey, prop.Name, prop.Type)
	}
	if seq, isSeq := asSequence(value); isSeq {
		out := make([]any, 0, len(seq))
		for _, element := range seq {
			if element == nil {
				out = append(out, nil)
				continue
			}
			sub, err := Project(element, nested)
			if err != nil {
				return nil, err
			}
			out = append(out, sub)
		}
		return out, nil
	}
	return Project(value, nested)
}

// flattenReference narrows a referenced element to its identifier name/value
// pairs. It never recurses into the element's other properties; references
// must not expand the graph.
func flattenReference(nested *TypeSchema, element any) (map[string]any, error) {
	out := make(map[string]any, len(nested.identifiers))
	for _, idName := range nested.identifiers {
		v, state := lookupProperty(element, idName)
		if state == propNoAccessor {
			return nil, NewMissingPropertyError(nested.typeKey, idName)
		}
		out[idName] = v
	}
	return out, nil
}
