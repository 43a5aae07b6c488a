package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/taskfolk/agendo/engine"
	"github.com/taskfolk/agendo/server/auth"
	"github.com/taskfolk/agendo/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(HeaderContentType, MimeTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps engine and storage errors onto HTTP statuses.
func (r *Router) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, engine.ErrInvalidRange),
		errors.Is(err, engine.ErrInvalidDate),
		errors.Is(err, storage.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, storage.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		r.logger.Error("request failed", "error", err)
	}

	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   err.Error(),
	})
}

// owner resolves the authenticated owner id from the request context.
func owner(req *http.Request) (string, bool) {
	p := auth.GetPrincipalFromContext(req.Context())
	if p == nil {
		return "", false
	}
	return p.ID, true
}

// requireOwner writes a 401 when no principal is attached. That only
// happens when the router runs without the auth middleware in front.
func (r *Router) requireOwner(w http.ResponseWriter, req *http.Request) (string, bool) {
	id, ok := owner(req)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false,
			"error":   "authentication required",
		})
	}
	return id, ok
}
