package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lychee-technology/facet"
	"github.com/lychee-technology/facet/internal"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	registry := facet.NewSchemaRegistry()
	child := facet.NewTypeSchema("Child", "Child", []string{"SessionID"}, []facet.PropertySchema{
		{Name: "SessionID", Type: facet.TypeDouble},
		{Name: "Label", Type: facet.TypeString},
	})
	parent := facet.NewTypeSchema("Parent", "Parent", nil, []facet.PropertySchema{
		{Name: "Name", Type: facet.TypeString},
		{Name: "Children", Type: "Child", IsArray: true},
	})
	if err := registry.Register(child); err != nil {
		t.Fatalf("register child: %v", err)
	}
	if err := registry.Register(parent); err != nil {
		t.Fatalf("register parent: %v", err)
	}

	bridge := internal.NewBridge(registry, nil)
	record, err := bridge.CreateRecord("Parent", map[string]any{
		"Name":     "root",
		"Children": []any{map[string]any{"SessionID": float64(7), "Label": "first"}},
	})
	if err != nil {
		t.Fatalf("create root record: %v", err)
	}
	if err := bridge.RegisterRoot("main", "Parent", record); err != nil {
		t.Fatalf("register root: %v", err)
	}

	server := NewServer(bridge, internal.NewBridgeDispatcher(bridge), 1<<20)
	server.RegisterRoutes()
	return server
}

func doRequest(t *testing.T, server *Server, method, target, body string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)

	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, resp
}

func TestHandleHealth(t *testing.T) {
	server := newTestServer(t)
	rec, resp := doRequest(t, server, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("expected healthy response, got %d %s", rec.Code, rec.Body.String())
	}
	data := resp.Data.(map[string]any)
	if data["status"] != "ok" || data["schemas"] != float64(2) {
		t.Fatalf("unexpected health payload: %v", data)
	}
}

func TestHandleListSchemas(t *testing.T) {
	server := newTestServer(t)
	rec, resp := doRequest(t, server, http.MethodGet, "/api/v1/schemas", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	keys := resp.Data.([]any)
	if len(keys) != 2 || keys[0] != "Child" || keys[1] != "Parent" {
		t.Fatalf("unexpected schema list: %v", keys)
	}
}

func TestHandleGetSchema(t *testing.T) {
	server := newTestServer(t)
	rec, resp := doRequest(t, server, http.MethodGet, "/api/v1/schemas/Child", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	def := resp.Data.(map[string]any)
	if def["type_key"] != "Child" {
		t.Fatalf("unexpected definition: %v", def)
	}
	props := def["properties"].([]any)
	if len(props) != 2 {
		t.Fatalf("expected 2 properties, got %v", props)
	}
}

func TestHandleGetSchemaMissing(t *testing.T) {
	server := newTestServer(t)
	rec, resp := doRequest(t, server, http.MethodGet, "/api/v1/schemas/Ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if resp.Success || resp.Error == nil || resp.Error.Code != facet.ErrCodeSchemaNotFound {
		t.Fatalf("unexpected error payload: %s", rec.Body.String())
	}
}

func TestHandleCreateRecord(t *testing.T) {
	server := newTestServer(t)
	rec, resp := doRequest(t, server, http.MethodPost, "/api/v1/records/Child", `{"SessionID": 3, "Label": "x"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	data := resp.Data.(map[string]any)
	payload := data["record"].(map[string]any)
	if payload["SessionID"] != float64(3) || payload["Label"] != "x" {
		t.Fatalf("unexpected record payload: %v", payload)
	}
	meta := data["meta"].(map[string]any)
	if meta["type_key"] != "Child" {
		t.Fatalf("unexpected meta: %v", meta)
	}
	names := meta["property_names"].([]any)
	if len(names) != 2 || names[0] != "SessionID" || names[1] != "Label" {
		t.Fatalf("unexpected property names: %v", names)
	}
}

func TestHandleCreateRecordUnknownProperty(t *testing.T) {
	server := newTestServer(t)
	rec, resp := doRequest(t, server, http.MethodPost, "/api/v1/records/Child", `{"SessionID": 3, "Ghost": true}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", rec.Code, rec.Body.String())
	}
	if resp.Error == nil || resp.Error.Code != facet.ErrCodeUnknownProperty {
		t.Fatalf("unexpected error payload: %s", rec.Body.String())
	}
}

func TestHandleProjectSubset(t *testing.T) {
	server := newTestServer(t)
	rec, resp := doRequest(t, server, http.MethodPost, "/api/v1/project/Child",
		`{"object": {"SessionID": 5, "Label": "y"}, "properties": ["Label"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	tree := resp.Data.(map[string]any)
	if len(tree) != 1 || tree["Label"] != "y" {
		t.Fatalf("unexpected projection: %v", tree)
	}
}

func TestHandleResolveRoot(t *testing.T) {
	server := newTestServer(t)

	rec, resp := doRequest(t, server, http.MethodPost, "/api/v1/roots/main/resolve", `{"path": "Children[1]"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	tree := resp.Data.(map[string]any)
	if tree["SessionID"] != float64(7) || tree["Label"] != "first" {
		t.Fatalf("unexpected resolved record: %v", tree)
	}

	rec, resp = doRequest(t, server, http.MethodPost, "/api/v1/roots/main/resolve", `{"path": "Name"}`)
	if rec.Code != http.StatusOK || resp.Data != "root" {
		t.Fatalf("expected scalar resolution, got %d %s", rec.Code, rec.Body.String())
	}

	rec, resp = doRequest(t, server, http.MethodPost, "/api/v1/roots/ghost/resolve", `{"path": "Name"}`)
	if rec.Code != http.StatusNotFound || resp.Error == nil || resp.Error.Code != facet.ErrCodeRootNotFound {
		t.Fatalf("expected root not found, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandleApplyValue(t *testing.T) {
	server := newTestServer(t)

	rec, resp := doRequest(t, server, http.MethodPut, "/api/v1/roots/main/value",
		`{"path": "Children[1].Label", "value": "renamed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	data := resp.Data.(map[string]any)
	if data["session_id"] == "" || data["session_id"] == nil {
		t.Fatalf("expected a session id, got %v", data)
	}

	_, resp = doRequest(t, server, http.MethodPost, "/api/v1/roots/main/resolve", `{"path": "Children[1].Label"}`)
	if resp.Data != "renamed" {
		t.Fatalf("write not visible, got %v", resp.Data)
	}
}

func TestHandleEvents(t *testing.T) {
	server := newTestServer(t)

	rec, resp := doRequest(t, server, http.MethodPost, "/api/v1/events", `{"type": "project", "root": "main"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	tree := resp.Data.(map[string]any)
	if tree["Name"] != "root" {
		t.Fatalf("unexpected projection: %v", tree)
	}

	rec, resp = doRequest(t, server, http.MethodPost, "/api/v1/events", `{"type": "noop"}`)
	if rec.Code != http.StatusNotFound || resp.Error == nil || resp.Error.Code != facet.ErrCodeUnknownEvent {
		t.Fatalf("expected unknown event, got %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = doRequest(t, server, http.MethodPost, "/api/v1/events", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing type, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server := newTestServer(t)
	rec, _ := doRequest(t, server, http.MethodDelete, "/api/v1/schemas", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
