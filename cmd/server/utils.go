package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/lychee-technology/facet"
)

// APIResponse is the standard response envelope.
type APIResponse struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Error   *facet.FacetError `json:"error,omitempty"`
}

// writeJSON writes a JSON response to http.ResponseWriter
func writeJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// writeSuccess wraps data in the success envelope
func writeSuccess(w http.ResponseWriter, statusCode int, data any) error {
	return writeJSON(w, statusCode, APIResponse{Success: true, Data: data})
}

// writeError reports a request-shape problem (bad method, unreadable body)
// with an explicit status
func writeError(w http.ResponseWriter, statusCode int, code, message string) error {
	ferr := facet.NewFacetError(facet.ErrorTypeValidation, code, message)
	return writeJSON(w, statusCode, APIResponse{Success: false, Error: ferr})
}

// writeFacetError reports a domain error with the status derived from its
// category, coercing non-facet errors into internal ones
func writeFacetError(w http.ResponseWriter, err error) error {
	ferr, ok := err.(*facet.FacetError)
	if !ok {
		ferr = facet.NewInternalError(err.Error(), err)
	}
	return writeJSON(w, statusForError(ferr), APIResponse{Success: false, Error: ferr})
}

// statusForError maps error categories onto HTTP statuses
func statusForError(ferr *facet.FacetError) int {
	switch ferr.Type {
	case facet.ErrorTypeNotFound:
		return http.StatusNotFound
	case facet.ErrorTypeSource:
		return http.StatusServiceUnavailable
	case facet.ErrorTypeJournal, facet.ErrorTypeInternal:
		return http.StatusInternalServerError
	}
	if ferr.Code == facet.ErrCodeReadOnlyProperty {
		return http.StatusForbidden
	}
	return http.StatusBadRequest
}

// parseSubPath extracts the single path segment after the prefix,
// e.g. /api/v1/schemas/{typeKey}
func parseSubPath(path, prefix string) (string, error) {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return "", fmt.Errorf("missing path segment after %s", prefix)
	}
	if strings.Contains(rest, "/") {
		return "", fmt.Errorf("unexpected path segments after %s", prefix)
	}
	return rest, nil
}

// parseRootAction parses /api/v1/roots/{root}/{action}
func parseRootAction(path string) (root string, action string, err error) {
	rest := strings.Trim(strings.TrimPrefix(path, "/api/v1/roots/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected /api/v1/roots/{root}/{action}")
	}
	return parts[0], parts[1], nil
}

// readJSONBody reads and decodes JSON from the request body, capped at
// maxBytes
func readJSONBody(w http.ResponseWriter, r *http.Request, maxBytes int64, v any) error {
	defer r.Body.Close()
	body := http.MaxBytesReader(w, r.Body, maxBytes)
	return json.NewDecoder(body).Decode(v)
}
