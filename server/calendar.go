package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/taskfolk/agendo/engine"
	"github.com/taskfolk/agendo/ical"
	"github.com/taskfolk/agendo/storage"
)

// parseWindow reads the optional start/end query parameters. Bounds
// accept RFC 3339 instants or bare YYYY-MM-DD dates.
func parseWindow(req *http.Request) (engine.Window, error) {
	var start, end *time.Time

	if s := req.URL.Query().Get("start"); s != "" {
		t, err := parseInstant(s)
		if err != nil {
			return engine.Window{}, fmt.Errorf("%w: bad start %q", storage.ErrInvalidInput, s)
		}
		start = &t
	}
	if s := req.URL.Query().Get("end"); s != "" {
		t, err := parseInstant(s)
		if err != nil {
			return engine.Window{}, fmt.Errorf("%w: bad end %q", storage.ErrInvalidInput, s)
		}
		end = &t
	}

	return engine.NewWindow(start, end), nil
}

func parseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func (r *Router) handleCalendarEvents(w http.ResponseWriter, req *http.Request) {
	ownerID, ok := r.requireOwner(w, req)
	if !ok {
		return
	}

	win, err := parseWindow(req)
	if err != nil {
		r.writeError(w, err)
		return
	}

	view, err := r.engine.CalendarEvents(req.Context(), ownerID, win)
	if err != nil {
		r.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (r *Router) handleCalendarFeed(w http.ResponseWriter, req *http.Request) {
	ownerID, ok := r.requireOwner(w, req)
	if !ok {
		return
	}

	win, err := parseWindow(req)
	if err != nil {
		r.writeError(w, err)
		return
	}

	view, err := r.engine.CalendarEvents(req.Context(), ownerID, win)
	if err != nil {
		r.writeError(w, err)
		return
	}

	w.Header().Set(HeaderContentType, MimeTypeCalendar)
	if err := ical.Write(w, view, "agendo"); err != nil {
		r.logger.Error("failed to encode calendar feed",
			"owner_id", ownerID, "error", err)
	}
}

func (r *Router) handlePatchInstance(w http.ResponseWriter, req *http.Request) {
	ownerID, ok := r.requireOwner(w, req)
	if !ok {
		return
	}

	taskID := req.PathValue("taskID")
	date := req.PathValue("date")

	var patch engine.PatchRequest
	if err := decodeJSON(req, &patch); err != nil {
		r.writeError(w, err)
		return
	}

	instance, err := r.engine.PatchInstance(req.Context(), ownerID, taskID, date, patch)
	if err != nil {
		r.writeError(w, err)
		return
	}

	r.sync.Bump()

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"instance": instance,
	})
}
