package internal

import (
	"context"
	"testing"

	"github.com/lychee-technology/facet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_UnknownEvent(t *testing.T) {
	dispatcher := NewDispatcher()
	_, err := dispatcher.Dispatch(context.Background(), Event{Type: "nope"})
	require.Error(t, err)

	ferr, ok := err.(*facet.FacetError)
	require.True(t, ok)
	assert.Equal(t, facet.ErrCodeUnknownEvent, ferr.Code)
}

func TestDispatcher_RegisterAndDispatch(t *testing.T) {
	dispatcher := NewDispatcher()
	dispatcher.Register("echo", func(ctx context.Context, event Event) (any, error) {
		return event.Payload, nil
	})

	result, err := dispatcher.Dispatch(context.Background(), Event{Type: "echo", Payload: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", result)
	assert.Equal(t, []string{"echo"}, dispatcher.EventTypes())
}

func TestDispatcher_TelemetryHook(t *testing.T) {
	var names []string
	RegisterTelemetryEmitter(func(ctx context.Context, name string, labels map[string]string, value any) {
		names = append(names, name+"|"+labels["event"])
	})
	defer RegisterTelemetryEmitter(nil)

	dispatcher := NewDispatcher()
	dispatcher.Register("noop", func(ctx context.Context, event Event) (any, error) {
		return nil, nil
	})
	_, err := dispatcher.Dispatch(context.Background(), Event{Type: "noop"})
	require.NoError(t, err)
	assert.Contains(t, names, "facet_event_latency_histogram|noop")
}

func TestBridgeDispatcher_BuiltIns(t *testing.T) {
	ctx := context.Background()
	journal := &recordingJournal{}
	bridge := newBridgeWithRoot(t, journal)
	dispatcher := NewBridgeDispatcher(bridge)

	assert.Equal(t, []string{"create", "project", "resolve", "set"}, dispatcher.EventTypes())

	t.Run("project root", func(t *testing.T) {
		result, err := dispatcher.Dispatch(ctx, Event{Type: "project", Root: "main"})
		require.NoError(t, err)
		tree, ok := result.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "root", tree["Name"])
	})

	t.Run("project object", func(t *testing.T) {
		result, err := dispatcher.Dispatch(ctx, Event{
			Type:    "project",
			TypeKey: "Child",
			Payload: map[string]any{"SessionID": float64(5), "Label": "loose"},
		})
		require.NoError(t, err)
		tree, ok := result.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "loose", tree["Label"])
	})

	t.Run("project with subset", func(t *testing.T) {
		result, err := dispatcher.Dispatch(ctx, Event{
			Type:       "project",
			Root:       "main",
			Properties: []string{"Name"},
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"Name": "root"}, result)
	})

	t.Run("create", func(t *testing.T) {
		result, err := dispatcher.Dispatch(ctx, Event{
			Type:    "create",
			TypeKey: "Child",
			Payload: map[string]any{"SessionID": float64(8), "Label": "made"},
		})
		require.NoError(t, err)
		tree, ok := result.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(8), tree["SessionID"])
	})

	t.Run("resolve", func(t *testing.T) {
		result, err := dispatcher.Dispatch(ctx, Event{Type: "resolve", Root: "main", Path: "Children[1]"})
		require.NoError(t, err)
		tree, ok := result.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(101), tree["SessionID"])
	})

	t.Run("resolve scalar", func(t *testing.T) {
		result, err := dispatcher.Dispatch(ctx, Event{Type: "resolve", Root: "main", Path: "Children[1].Label"})
		require.NoError(t, err)
		assert.Equal(t, "first", result)
	})

	t.Run("set", func(t *testing.T) {
		result, err := dispatcher.Dispatch(ctx, Event{
			Type:    "set",
			Root:    "main",
			Path:    "Children[1].Label",
			Payload: "set via event",
		})
		require.NoError(t, err)
		out, ok := result.(map[string]any)
		require.True(t, ok)
		assert.NotEmpty(t, out["session_id"])
		require.Len(t, journal.entries, 1)
		assert.Equal(t, "Children[1].Label", journal.entries[0].Path)
	})
}
