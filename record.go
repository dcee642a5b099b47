package facet

import (
	"bytes"
	"encoding/json"
)

// GenericRecord is the factory's type-erased output: a property-keyed value
// payload plus a fixed metadata block copied from the originating schema.
// The metadata is reachable only through accessors and never appears when
// the payload is iterated or serialized as plain data. Records hold no
// reference back into the schema registry.
type GenericRecord struct {
	values map[string]any
	meta   recordMeta
}

type recordMeta struct {
	typeKey     string
	displayName string
	order       []string
	identifiers []string
	props       map[string]PropertySchema
}

// NewGenericRecord creates an empty record carrying the schema's metadata.
func NewGenericRecord(schema *TypeSchema) *GenericRecord {
	props := make(map[string]PropertySchema, len(schema.order))
	for name, p := range schema.props {
		props[name] = p
	}
	return &GenericRecord{
		values: make(map[string]any),
		meta: recordMeta{
			typeKey:     schema.typeKey,
			displayName: schema.displayName,
			order:       append([]string(nil), schema.order...),
			identifiers: append([]string(nil), schema.identifiers...),
			props:       props,
		},
	}
}

// TypeKey returns the originating schema's registry key.
func (r *GenericRecord) TypeKey() string {
	return r.meta.typeKey
}

// DisplayName returns the originating schema's display name.
func (r *GenericRecord) DisplayName() string {
	return r.meta.displayName
}

// PropertyNames returns the full ordered property-name list of the
// originating schema, populated or not.
func (r *GenericRecord) PropertyNames() []string {
	return append([]string(nil), r.meta.order...)
}

// IdentifierProperties returns the originating schema's identifier list,
// empty when none were declared.
func (r *GenericRecord) IdentifierProperties() []string {
	return append([]string(nil), r.meta.identifiers...)
}

// Property returns the schema descriptor for one property.
func (r *GenericRecord) Property(name string) (PropertySchema, error) {
	p, ok := r.meta.props[name]
	if !ok {
		return PropertySchema{}, NewUnknownPropertyError(r.meta.typeKey, name)
	}
	return p, nil
}

// Value reads a property value. The second return distinguishes "never
// populated" from "populated with nil".
func (r *GenericRecord) Value(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// SetValue writes a property value. Undeclared names are rejected.
func (r *GenericRecord) SetValue(name string, value any) error {
	if _, ok := r.meta.props[name]; !ok {
		return NewUnknownPropertyError(r.meta.typeKey, name)
	}
	r.values[name] = value
	return nil
}

// Values returns a shallow copy of the populated payload. Metadata is not
// part of the returned map.
func (r *GenericRecord) Values() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// MarshalJSON emits the payload only, in schema property order, skipping
// properties that were never populated.
func (r *GenericRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, name := range r.meta.order {
		v, ok := r.values[name]
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
