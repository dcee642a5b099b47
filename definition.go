package facet

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SchemaDefinition is the plain document shape schema sources supply: one
// JSON document per type, convertible into a TypeSchema.
type SchemaDefinition struct {
	TypeKey              string       `json:"type_key"`
	DisplayName          string       `json:"display_name,omitempty"`
	IdentifierProperties StringList   `json:"identifier_properties,omitempty"`
	Properties           PropertyList `json:"properties"`
}

// PropertyDefinition describes one property inside a definition document.
type PropertyDefinition struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	IsArray     bool   `json:"is_array,omitempty"`
	IsReference bool   `json:"is_reference,omitempty"`
	ReadOnly    bool   `json:"read_only,omitempty"`
	// ClientReadOnly inherits ReadOnly when the document omits it.
	ClientReadOnly *bool `json:"client_read_only,omitempty"`
}

// StringList accepts either a bare string or an array of strings.
type StringList []string

// UnmarshalJSON customizes decoding so `"SessionID"` and `["SessionID"]`
// both normalize to a slice.
func (l *StringList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty identifier list payload")
	}
	switch trimmed[0] {
	case 'n': // null
		*l = nil
		return nil
	case '"':
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*l = StringList{single}
		return nil
	case '[':
		var many []string
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*l = StringList(many)
		return nil
	}
	return fmt.Errorf("identifier_properties must be a string or an array of strings")
}

// PropertyList accepts the canonical array form or the name-to-descriptor
// object form. Declaration order is preserved for both.
type PropertyList []PropertyDefinition

// UnmarshalJSON inspects the payload and decodes whichever form arrived.
func (pl *PropertyList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty properties payload")
	}
	switch trimmed[0] {
	case 'n': // null
		*pl = nil
		return nil
	case '[':
		var defs []PropertyDefinition
		if err := json.Unmarshal(data, &defs); err != nil {
			return err
		}
		*pl = PropertyList(defs)
		return nil
	case '{':
		return pl.unmarshalObjectForm(data)
	}
	return fmt.Errorf("properties must be an array or an object")
}

// unmarshalObjectForm walks the raw tokens of the object form so property
// declaration order survives the decode (a plain map would lose it).
func (pl *PropertyList) unmarshalObjectForm(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	var defs []PropertyDefinition
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v in properties object", keyTok)
		}
		var def PropertyDefinition
		if err := dec.Decode(&def); err != nil {
			return err
		}
		def.Name = name
		defs = append(defs, def)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*pl = PropertyList(defs)
	return nil
}

// ParseSchemaDefinition decodes and validates a single definition document.
func ParseSchemaDefinition(data []byte) (*SchemaDefinition, error) {
	var def SchemaDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, NewDefinitionInvalidError("", "malformed definition document").WithCause(err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks the document shape. Cross-type resolvability is deliberately
// not checked here; nested types resolve lazily at use time so cyclic schemas
// can load in any order.
func (d *SchemaDefinition) Validate() error {
	if d.TypeKey == "" {
		return NewDefinitionInvalidError(d.TypeKey, "definition has no type_key")
	}
	seen := make(map[string]bool, len(d.Properties))
	for i, p := range d.Properties {
		if p.Name == "" {
			return NewDefinitionInvalidError(d.TypeKey,
				fmt.Sprintf("property %d has no name", i))
		}
		if p.Type == "" {
			return NewDefinitionInvalidError(d.TypeKey,
				fmt.Sprintf("property '%s' has no type", p.Name)).WithProperty(p.Name)
		}
		if seen[p.Name] {
			return NewDefinitionInvalidError(d.TypeKey,
				fmt.Sprintf("property '%s' declared twice", p.Name)).WithProperty(p.Name)
		}
		seen[p.Name] = true
	}
	for _, id := range d.IdentifierProperties {
		if !seen[id] {
			return NewDefinitionInvalidError(d.TypeKey,
				fmt.Sprintf("identifier property '%s' is not declared", id)).WithProperty(id)
		}
	}
	return nil
}

// TypeSchema compiles the document into a runtime schema. DisplayName falls
// back to the type key; client_read_only falls back to read_only.
func (d *SchemaDefinition) TypeSchema() (*TypeSchema, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	display := d.DisplayName
	if display == "" {
		display = d.TypeKey
	}
	props := make([]PropertySchema, 0, len(d.Properties))
	for _, pd := range d.Properties {
		ps := PropertySchema{
			Name:        pd.Name,
			Type:        pd.Type,
			IsArray:     pd.IsArray,
			IsReference: pd.IsReference,
			ReadOnly:    pd.ReadOnly,
		}
		if pd.ClientReadOnly != nil {
			ps.ClientReadOnly = *pd.ClientReadOnly
		} else {
			ps.ClientReadOnly = pd.ReadOnly
		}
		props = append(props, ps)
	}
	return NewTypeSchema(d.TypeKey, display, d.IdentifierProperties, props), nil
}

// Definition renders the schema back into its document form, e.g. for the
// HTTP schema listing.
func (s *TypeSchema) Definition() SchemaDefinition {
	props := make(PropertyList, 0, len(s.order))
	for _, name := range s.order {
		p := s.props[name]
		clientReadOnly := p.ClientReadOnly
		props = append(props, PropertyDefinition{
			Name:           p.Name,
			Type:           p.Type,
			IsArray:        p.IsArray,
			IsReference:    p.IsReference,
			ReadOnly:       p.ReadOnly,
			ClientReadOnly: &clientReadOnly,
		})
	}
	return SchemaDefinition{
		TypeKey:              s.typeKey,
		DisplayName:          s.displayName,
		IdentifierProperties: StringList(s.identifiers),
		Properties:           props,
	}
}
