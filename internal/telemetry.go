package internal

import (
	"context"
	"sync"
)

// telemetry.go
// Lightweight telemetry hook layer. Service wiring may register a real
// OpenTelemetry emitter (or a test stub) via RegisterTelemetryEmitter; the
// default is a no-op so nothing here depends on an OTEL SDK.

type telemetryEmitter func(ctx context.Context, name string, labels map[string]string, value any)

var (
	teleMu   sync.Mutex
	teleImpl telemetryEmitter = func(ctx context.Context, name string, labels map[string]string, value any) {
		// noop by default
	}
)

// RegisterTelemetryEmitter registers a custom emitter function. Passing nil
// restores the no-op.
func RegisterTelemetryEmitter(fn telemetryEmitter) {
	teleMu.Lock()
	defer teleMu.Unlock()
	if fn == nil {
		teleImpl = func(ctx context.Context, name string, labels map[string]string, value any) {}
		return
	}
	teleImpl = fn
}

// EmitEventLatency records the handling latency (milliseconds) of one
// dispatched event.
// name: "facet_event_latency_histogram" with label {"event": "<type>"}
func EmitEventLatency(ctx context.Context, eventType string, ms int64) {
	teleMu.Lock()
	fn := teleImpl
	teleMu.Unlock()
	labels := map[string]string{"event": eventType}
	fn(ctx, "facet_event_latency_histogram", labels, ms)
}

// EmitSchemaLoad records how many definitions a source delivered.
// name: "facet_schema_load_count" with label {"source": "<source name>"}
func EmitSchemaLoad(ctx context.Context, source string, schemas int64) {
	teleMu.Lock()
	fn := teleImpl
	teleMu.Unlock()
	labels := map[string]string{"source": source}
	fn(ctx, "facet_schema_load_count", labels, schemas)
}

// EmitJournalFlush records rows flushed to object storage for one type.
// name: "facet_journal_flush_row_count" with label {"type_key": "<key>"}
func EmitJournalFlush(ctx context.Context, typeKey string, rows int64) {
	teleMu.Lock()
	fn := teleImpl
	teleMu.Unlock()
	labels := map[string]string{"type_key": typeKey}
	fn(ctx, "facet_journal_flush_row_count", labels, rows)
}
