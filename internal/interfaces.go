package internal

import (
	"context"

	"github.com/lychee-technology/facet"
)

// SchemaSource supplies schema definition documents from some backing store.
// Implementations exist for directories, Postgres tables and S3 prefixes.
type SchemaSource interface {
	// Load fetches every definition document the source holds. Broken
	// documents are collected into a facet.DefinitionErrors rather than
	// aborting the whole load.
	Load(ctx context.Context) ([]*facet.SchemaDefinition, error)

	// Name identifies the source in logs and errors.
	Name() string
}

// MutationJournal records applied mutations for later export. The bridge
// calls it after every successful write; a nil journal disables recording.
type MutationJournal interface {
	Record(ctx context.Context, entry JournalEntry) error
}

// JournalEntry is one applied mutation.
type JournalEntry struct {
	TypeKey   string `json:"type_key"`
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
	Payload   any    `json:"payload"`
	ChangedAt int64  `json:"changed_at"`
}
