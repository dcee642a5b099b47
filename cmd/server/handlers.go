package main

import (
	"net/http"

	"github.com/lychee-technology/facet"
	"github.com/lychee-technology/facet/internal"
)

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"schemas": len(s.registry.ListSchemas()),
	})
}

// handleListSchemas handles GET /api/v1/schemas
func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	writeSuccess(w, http.StatusOK, s.registry.ListSchemas())
}

// handleGetSchema handles GET /api/v1/schemas/{typeKey}
func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	typeKey, err := parseSubPath(r.URL.Path, "/api/v1/schemas/")
	if err != nil {
		writeError(w, http.StatusBadRequest, facet.ErrCodeInvalidPath, err.Error())
		return
	}
	schema, err := s.registry.Get(typeKey)
	if err != nil {
		writeFacetError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, schema.Definition())
}

// handleCreateRecord handles POST /api/v1/records/{typeKey}
func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	typeKey, err := parseSubPath(r.URL.Path, "/api/v1/records/")
	if err != nil {
		writeError(w, http.StatusBadRequest, facet.ErrCodeInvalidPath, err.Error())
		return
	}
	var body any
	if err := readJSONBody(w, r, s.maxBody, &body); err != nil {
		writeError(w, http.StatusBadRequest, facet.ErrCodeInvalidJSON, "invalid json body: "+err.Error())
		return
	}
	record, err := s.bridge.CreateRecord(typeKey, body)
	if err != nil {
		writeFacetError(w, err)
		return
	}
	if record == nil {
		writeSuccess(w, http.StatusCreated, nil)
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]any{
		"record": record,
		"meta": map[string]any{
			"type_key":              record.TypeKey(),
			"display_name":          record.DisplayName(),
			"property_names":        record.PropertyNames(),
			"identifier_properties": record.IdentifierProperties(),
		},
	})
}

// projectRequest is the body of POST /api/v1/project/{typeKey}
type projectRequest struct {
	Object     any      `json:"object"`
	Properties []string `json:"properties"`
}

// handleProject handles POST /api/v1/project/{typeKey}
func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	typeKey, err := parseSubPath(r.URL.Path, "/api/v1/project/")
	if err != nil {
		writeError(w, http.StatusBadRequest, facet.ErrCodeInvalidPath, err.Error())
		return
	}
	var req projectRequest
	if err := readJSONBody(w, r, s.maxBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, facet.ErrCodeInvalidJSON, "invalid json body: "+err.Error())
		return
	}
	result, err := s.bridge.ProjectObject(typeKey, req.Object, req.Properties...)
	if err != nil {
		writeFacetError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

// resolveRequest is the body of POST /api/v1/roots/{root}/resolve
type resolveRequest struct {
	Path string `json:"path"`
}

// applyValueRequest is the body of PUT /api/v1/roots/{root}/value
type applyValueRequest struct {
	Path      string `json:"path"`
	Value     any    `json:"value"`
	SessionID string `json:"session_id"`
}

// handleRoots dispatches /api/v1/roots/{root}/resolve and
// /api/v1/roots/{root}/value
func (s *Server) handleRoots(w http.ResponseWriter, r *http.Request) {
	root, action, err := parseRootAction(r.URL.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, facet.ErrCodeInvalidPath, err.Error())
		return
	}
	switch action {
	case "resolve":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
			return
		}
		s.handleResolveRoot(w, r, root)
	case "value":
		if r.Method != http.MethodPut {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
			return
		}
		s.handleApplyValue(w, r, root)
	default:
		writeError(w, http.StatusNotFound, facet.ErrCodeInvalidPath, "unknown root action: "+action)
	}
}

// handleResolveRoot resolves a path against a named root. Records project
// to their payload form; scalars and arrays return as-is.
func (s *Server) handleResolveRoot(w http.ResponseWriter, r *http.Request, root string) {
	var req resolveRequest
	if err := readJSONBody(w, r, s.maxBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, facet.ErrCodeInvalidJSON, "invalid json body: "+err.Error())
		return
	}
	value, err := s.bridge.ResolveRoot(root, req.Path)
	if err != nil {
		writeFacetError(w, err)
		return
	}
	if record, ok := value.(*facet.GenericRecord); ok {
		projected, err := s.bridge.ProjectRecord(record)
		if err != nil {
			writeFacetError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, projected)
		return
	}
	writeSuccess(w, http.StatusOK, value)
}

// handleApplyValue writes a leaf value through a named root and journals
// the mutation. When journaling fails the write stays applied, so the
// session id rides along in the error details.
func (s *Server) handleApplyValue(w http.ResponseWriter, r *http.Request, root string) {
	var req applyValueRequest
	if err := readJSONBody(w, r, s.maxBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, facet.ErrCodeInvalidJSON, "invalid json body: "+err.Error())
		return
	}
	session, err := s.bridge.ApplyValue(r.Context(), root, req.Path, req.Value, req.SessionID)
	if err != nil {
		if ferr, ok := err.(*facet.FacetError); ok && session != "" {
			ferr.WithDetail("session_id", session)
		}
		writeFacetError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"session_id": session})
}

// handleEvents handles POST /api/v1/events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	var event internal.Event
	if err := readJSONBody(w, r, s.maxBody, &event); err != nil {
		writeError(w, http.StatusBadRequest, facet.ErrCodeInvalidJSON, "invalid json body: "+err.Error())
		return
	}
	if event.Type == "" {
		writeError(w, http.StatusBadRequest, facet.ErrCodeUnknownEvent, "event type is required")
		return
	}
	result, err := s.dispatcher.Dispatch(r.Context(), event)
	if err != nil {
		writeFacetError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}
