// Package api provides HTTP API handlers for exercises, templates and sessions.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/vyayama/internal/app"
	"github.com/ayusman/vyayama/internal/matcher"
	"github.com/ayusman/vyayama/internal/store"
	"github.com/ayusman/vyayama/internal/template"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrSessionActive):
		return http.StatusConflict
	case errors.Is(err, app.ErrNoSession):
		return http.StatusNotFound
	case errors.Is(err, app.ErrNoVideo),
		errors.Is(err, app.ErrUnknownMode),
		errors.Is(err, template.ErrInvalidTemplate):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrTemplateNotReady),
		errors.Is(err, matcher.ErrNoReference):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeErr writes err with the status it maps to.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, StatusFor(err), err.Error())
}

// readJSON decodes a bounded request body into obj, writing a 400 on failure.
func readJSON(w http.ResponseWriter, r *http.Request, obj interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(obj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	return true
}
