// Package server exposes the engine over a JSON HTTP API.
package server

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/taskfolk/agendo/engine"
	"github.com/taskfolk/agendo/storage"
)

const (
	// HTTP headers
	HeaderContentType = "Content-Type"

	// MIME types
	MimeTypeJSON     = "application/json; charset=utf-8"
	MimeTypeCalendar = "text/calendar; charset=utf-8"
)

// Router handles API request routing
type Router struct {
	storage storage.Storage
	engine  *engine.Engine
	sync    *SyncState
	mux     *http.ServeMux
	logger  *slog.Logger
}

// NewRouter creates a new API router
func NewRouter(store storage.Storage, eng *engine.Engine, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := &Router{
		storage: store,
		engine:  eng,
		sync:    NewSyncState(),
		mux:     http.NewServeMux(),
		logger:  logger,
	}

	r.mux.HandleFunc("GET /healthz", r.handleHealth)
	r.mux.HandleFunc("GET /sync", r.handleSync)
	r.mux.HandleFunc("GET /calendar/events", r.handleCalendarEvents)
	r.mux.HandleFunc("GET /calendar/feed.ics", r.handleCalendarFeed)
	r.mux.HandleFunc("GET /tasks", r.handleListTasks)
	r.mux.HandleFunc("POST /tasks", r.handleCreateTask)
	r.mux.HandleFunc("GET /tasks/{taskID}", r.handleGetTask)
	r.mux.HandleFunc("PUT /tasks/{taskID}", r.handleUpdateTask)
	r.mux.HandleFunc("DELETE /tasks/{taskID}", r.handleDeleteTask)
	r.mux.HandleFunc("PATCH /tasks/{taskID}/instances/{date}", r.handlePatchInstance)

	return r
}

// ServeHTTP implements http.Handler interface
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.logger.Info("received request",
		"method", req.Method,
		"path", req.URL.Path,
		"remote_addr", req.RemoteAddr)

	r.mux.ServeHTTP(w, req)
}

// SyncToken returns the current shared data-version token.
func (r *Router) SyncToken() string {
	return r.sync.Current()
}

func (r *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleSync(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"token": r.sync.Current()})
}
