package internal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lychee-technology/facet"
	"go.uber.org/zap"
)

// Bridge owns the named root objects a client layer works against. Clients
// see only JSON-compatible trees and dotted paths; the core does the
// marshalling. A nil journal disables mutation recording.
type Bridge struct {
	mu       sync.RWMutex
	registry *facet.SchemaRegistry
	factory  *facet.Factory
	journal  MutationJournal
	roots    map[string]*rootEntry
}

type rootEntry struct {
	typeKey string
	value   any
}

// NewBridge creates a bridge over a loaded registry.
func NewBridge(registry *facet.SchemaRegistry, journal MutationJournal) *Bridge {
	return &Bridge{
		registry: registry,
		factory:  facet.NewFactory(registry),
		journal:  journal,
		roots:    make(map[string]*rootEntry),
	}
}

// Registry exposes the schema registry for read-side handlers.
func (b *Bridge) Registry() *facet.SchemaRegistry {
	return b.registry
}

// RegisterRoot publishes a value under a name. The type key must be
// registered; the value is typically a record built by CreateRecord but any
// accessor-compatible tree works.
func (b *Bridge) RegisterRoot(name, typeKey string, value any) error {
	if _, err := b.registry.Get(typeKey); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roots[name] = &rootEntry{typeKey: typeKey, value: value}
	zap.S().Infow("registered root object", "root", name, "typeKey", typeKey)
	return nil
}

// Roots returns the registered root names, sorted.
func (b *Bridge) Roots() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.roots))
	for name := range b.roots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProjectRoot projects a named root into a JSON-compatible tree.
func (b *Bridge) ProjectRoot(name string, properties ...string) (map[string]any, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.roots[name]
	if !ok {
		return nil, facet.NewRootNotFoundError(name)
	}
	schema, err := b.registry.Get(entry.typeKey)
	if err != nil {
		return nil, err
	}
	return facet.Project(entry.value, schema, properties...)
}

// ResolveRoot resolves a dotted path against a named root and returns the
// value it lands on.
func (b *Bridge) ResolveRoot(name, pathString string) (any, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.roots[name]
	if !ok {
		return nil, facet.NewRootNotFoundError(name)
	}
	return facet.ResolvePath(pathString, entry.value)
}

// ApplyValue writes a value at a path under a named root and journals the
// mutation. It returns the session ID stamped on the journal entry; a caller
// session that is not a UUID is replaced with a fresh one. The lock spans the
// journal append so entries observe apply order.
func (b *Bridge) ApplyValue(ctx context.Context, rootName, pathString string, value any, sessionID string) (string, error) {
	path, err := facet.ParsePath(pathString)
	if err != nil {
		return "", err
	}
	if len(path) == 0 {
		return "", facet.NewInvalidPathSyntaxError(pathString, "cannot write to an empty path")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.roots[rootName]
	if !ok {
		return "", facet.NewRootNotFoundError(rootName)
	}
	schema, err := b.registry.Get(entry.typeKey)
	if err != nil {
		return "", err
	}
	if ferr := checkClientWritable(b.registry, schema, path); ferr != nil {
		return "", ferr
	}

	if err := facet.SetValueAtPath(entry.value, pathString, value); err != nil {
		return "", err
	}

	session := normalizeSessionID(sessionID)
	if b.journal != nil {
		journalEntry := JournalEntry{
			TypeKey:   entry.typeKey,
			SessionID: session,
			Path:      pathString,
			Payload:   value,
			ChangedAt: time.Now().UnixMilli(),
		}
		if err := b.journal.Record(ctx, journalEntry); err != nil {
			// The write already took effect; losing the audit trail silently
			// would be worse than surfacing the failure.
			return session, facet.NewJournalError("failed to record mutation", err)
		}
	}
	zap.S().Debugw("applied value", "root", rootName, "path", pathString, "session", session)
	return session, nil
}

// CreateRecord builds a record of the given type from a decoded JSON value.
func (b *Bridge) CreateRecord(typeKey string, value any) (*facet.GenericRecord, error) {
	return b.factory.Create(typeKey, value)
}

// CreateRecordFromJSON builds a record of the given type from raw JSON.
func (b *Bridge) CreateRecordFromJSON(typeKey string, data []byte) (*facet.GenericRecord, error) {
	return b.factory.CreateFromJSON(typeKey, data)
}

// ProjectObject runs a decoded JSON value through the factory and projects
// the result, normalizing cardinality and flattening references on the way.
func (b *Bridge) ProjectObject(typeKey string, value any, properties ...string) (map[string]any, error) {
	schema, err := b.registry.Get(typeKey)
	if err != nil {
		return nil, err
	}
	record, err := b.factory.Create(typeKey, value)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	return facet.Project(record, schema, properties...)
}

// ProjectRecord projects an existing record with its registered schema.
func (b *Bridge) ProjectRecord(record *facet.GenericRecord, properties ...string) (map[string]any, error) {
	schema, err := b.registry.Get(record.TypeKey())
	if err != nil {
		return nil, err
	}
	return facet.Project(record, schema, properties...)
}

// checkClientWritable walks the path through the schema graph and rejects a
// write whose leaf property is client-read-only. Segments the schema does not
// declare are left for the core write to rule on.
func checkClientWritable(registry *facet.SchemaRegistry, schema *facet.TypeSchema, path facet.Path) *facet.FacetError {
	current := schema
	for i, seg := range path {
		prop, ok := current.Property(seg.Property)
		if !ok {
			return nil
		}
		if i == len(path)-1 {
			if prop.ClientReadOnly {
				return facet.NewReadOnlyPropertyError(current.TypeKey(), prop.Name)
			}
			return nil
		}
		if facet.IsPrimitiveType(prop.Type) {
			return nil
		}
		next, err := registry.Get(prop.Type)
		if err != nil {
			return nil
		}
		current = next
	}
	return nil
}

// normalizeSessionID keeps a caller-provided UUID and mints one otherwise.
func normalizeSessionID(raw string) string {
	if id, ok := toUUID(raw); ok {
		return id.String()
	}
	return uuid.NewString()
}
