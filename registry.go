package facet

import (
	"sort"
	"sync"
)

// SchemaRegistry maps type keys to type schemas. It is built during an
// initial load phase and read-mostly afterwards; the RWMutex keeps late
// registrations safe against concurrent readers. The registry itself
// satisfies SchemaLookup and hands that capability to every schema it
// registers.
type SchemaRegistry struct {
	mu      sync.RWMutex
	schemas map[string]*TypeSchema
}

// NewSchemaRegistry creates an empty registry.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{
		schemas: make(map[string]*TypeSchema),
	}
}

// Register inserts or overwrites the entry for the schema's type key (last
// write wins) and binds the schema's nested-type lookup to this registry.
func (r *SchemaRegistry) Register(schema *TypeSchema) error {
	if schema == nil {
		return NewInvalidSchemaError("schema is nil")
	}
	if schema.TypeKey() == "" {
		return NewInvalidSchemaError("schema has no type key")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	schema.bind(r)
	r.schemas[schema.TypeKey()] = schema
	return nil
}

// Has reports whether a schema is registered under the key.
func (r *SchemaRegistry) Has(typeKey string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.schemas[typeKey]
	return ok
}

// Get returns the schema registered under the key.
func (r *SchemaRegistry) Get(typeKey string) (*TypeSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schema, ok := r.schemas[typeKey]
	if !ok {
		return nil, NewSchemaNotFoundError(typeKey)
	}
	return schema, nil
}

// ListSchemas returns all registered type keys in sorted order.
func (r *SchemaRegistry) ListSchemas() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.schemas))
	for key := range r.schemas {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
