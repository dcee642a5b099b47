package facet

// Primitive type tags understood without registry lookup.
const (
	TypeString  = "string"
	TypeDouble  = "double"
	TypeBoolean = "boolean"
)

// IsPrimitiveType reports whether a declared property type is a primitive tag
// rather than the key of a registered schema.
func IsPrimitiveType(t string) bool {
	switch t {
	case TypeString, TypeDouble, TypeBoolean:
		return true
	}
	return false
}

// PropertySchema is the immutable descriptor of a single property.
type PropertySchema struct {
	Name string `json:"name"`
	// Type is a primitive tag ("string", "double", "boolean") or the type
	// key of another registered schema.
	Type           string `json:"type"`
	IsArray        bool   `json:"is_array,omitempty"`
	IsReference    bool   `json:"is_reference,omitempty"`
	ReadOnly       bool   `json:"read_only,omitempty"`
	ClientReadOnly bool   `json:"client_read_only,omitempty"`
}

// SchemaLookup is the non-owning resolution capability a TypeSchema receives
// from its registry. It is used only to resolve nested types by name, never
// to enumerate other schemas.
type SchemaLookup interface {
	Has(typeKey string) bool
	Get(typeKey string) (*TypeSchema, error)
}

// TypeSchema is a named, ordered collection of property schemas describing
// one projectable domain type. Instances are immutable after construction;
// the registry binds the lookup handle on registration.
type TypeSchema struct {
	typeKey     string
	displayName string
	identifiers []string
	order       []string
	props       map[string]PropertySchema
	lookup      SchemaLookup
}

// NewTypeSchema builds a TypeSchema. Property order follows the slice order;
// a duplicated name keeps its first position but takes the later descriptor.
func NewTypeSchema(typeKey, displayName string, identifiers []string, properties []PropertySchema) *TypeSchema {
	s := &TypeSchema{
		typeKey:     typeKey,
		displayName: displayName,
		identifiers: append([]string(nil), identifiers...),
		props:       make(map[string]PropertySchema, len(properties)),
	}
	for _, p := range properties {
		if _, seen := s.props[p.Name]; !seen {
			s.order = append(s.order, p.Name)
		}
		s.props[p.Name] = p
	}
	return s
}

// TypeKey returns the unique registry key of the schema.
func (s *TypeSchema) TypeKey() string {
	return s.typeKey
}

// DisplayName returns the cosmetic name shown to consuming UIs.
func (s *TypeSchema) DisplayName() string {
	return s.displayName
}

// IdentifierProperties returns the ordered identifier property names, empty
// when the type declares none.
func (s *TypeSchema) IdentifierProperties() []string {
	return append([]string(nil), s.identifiers...)
}

// PropertyNames returns every property name in declaration order.
func (s *TypeSchema) PropertyNames() []string {
	return append([]string(nil), s.order...)
}

// Property looks up a single property descriptor by name.
func (s *TypeSchema) Property(name string) (PropertySchema, bool) {
	p, ok := s.props[name]
	return p, ok
}

// HasProperty reports whether the schema declares the named property.
func (s *TypeSchema) HasProperty(name string) bool {
	_, ok := s.props[name]
	return ok
}

// bind injects the registry lookup handle. Registration-time only.
func (s *TypeSchema) bind(lookup SchemaLookup) {
	s.lookup = lookup
}

// nestedSchema resolves a non-primitive property type through the bound
// lookup. Resolution is lazy so cyclic schemas can load in any order.
func (s *TypeSchema) nestedSchema(typeName string) (*TypeSchema, bool) {
	if s.lookup == nil || !s.lookup.Has(typeName) {
		return nil, false
	}
	nested, err := s.lookup.Get(typeName)
	if err != nil {
		return nil, false
	}
	return nested, true
}
