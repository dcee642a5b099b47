package internal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lychee-technology/facet"
	"go.uber.org/zap"
)

// Event is the decoded form of a client event. Fields beyond Type are
// interpreted by the handler; unused ones stay zero.
type Event struct {
	Type       string   `json:"type"`
	SessionID  string   `json:"session_id,omitempty"`
	TypeKey    string   `json:"type_key,omitempty"`
	Root       string   `json:"root,omitempty"`
	Path       string   `json:"path,omitempty"`
	Properties []string `json:"properties,omitempty"`
	Payload    any      `json:"payload,omitempty"`
}

// HandlerFunc consumes one event and produces a JSON-compatible result.
type HandlerFunc func(ctx context.Context, event Event) (any, error)

// Dispatcher routes events to handlers through a plain name table.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]HandlerFunc)}
}

// Register binds a handler to an event type, replacing any previous binding.
func (d *Dispatcher) Register(eventType string, handler HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = handler
}

// EventTypes returns the registered event types, sorted.
func (d *Dispatcher) EventTypes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	types := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Dispatch routes one event. An unregistered type fails with UNKNOWN_EVENT.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) (any, error) {
	d.mu.RLock()
	handler, ok := d.handlers[event.Type]
	d.mu.RUnlock()
	if !ok {
		return nil, facet.NewUnknownEventError(event.Type)
	}
	zap.S().Debugw("dispatching event", "type", event.Type, "root", event.Root, "typeKey", event.TypeKey)
	start := time.Now()
	result, err := handler(ctx, event)
	EmitEventLatency(ctx, event.Type, time.Since(start).Milliseconds())
	return result, err
}

// NewBridgeDispatcher creates a dispatcher preloaded with the built-in
// handlers, all delegating to the bridge.
//
//	project  projects a named root, or a payload object of a given type
//	create   builds a record from the payload and projects it back
//	resolve  resolves a path under a named root
//	set      applies the payload at a path under a named root
func NewBridgeDispatcher(bridge *Bridge) *Dispatcher {
	d := NewDispatcher()

	d.Register("project", func(ctx context.Context, event Event) (any, error) {
		if event.Root != "" {
			return bridge.ProjectRoot(event.Root, event.Properties...)
		}
		return bridge.ProjectObject(event.TypeKey, event.Payload, event.Properties...)
	})

	d.Register("create", func(ctx context.Context, event Event) (any, error) {
		record, err := bridge.CreateRecord(event.TypeKey, event.Payload)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, nil
		}
		return bridge.ProjectRecord(record)
	})

	d.Register("resolve", func(ctx context.Context, event Event) (any, error) {
		value, err := bridge.ResolveRoot(event.Root, event.Path)
		if err != nil {
			return nil, err
		}
		if record, ok := value.(*facet.GenericRecord); ok {
			return bridge.ProjectRecord(record)
		}
		return value, nil
	})

	d.Register("set", func(ctx context.Context, event Event) (any, error) {
		session, err := bridge.ApplyValue(ctx, event.Root, event.Path, event.Payload, event.SessionID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"session_id": session}, nil
	})

	return d
}
