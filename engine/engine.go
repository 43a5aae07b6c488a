package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/taskfolk/agendo/recurrence"
	"github.com/taskfolk/agendo/storage"
)

var (
	// ErrInvalidRange is returned when a query window's start is after its end
	ErrInvalidRange = errors.New("window start is after window end")
	// ErrInvalidDate is returned when an occurrence date cannot be parsed
	ErrInvalidDate = errors.New("invalid occurrence date")
)

// Engine materializes recurring tasks into calendar events and applies
// per-occurrence edits as overrides, without ever mutating parent tasks.
type Engine struct {
	store    storage.Storage
	expander *recurrence.Expander
	logger   *slog.Logger
}

// New creates an engine on top of the given storage.
func New(store storage.Storage, expander *recurrence.Expander, logger *slog.Logger) *Engine {
	if expander == nil {
		expander = recurrence.NewExpander()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		store:    store,
		expander: expander,
		logger:   logger,
	}
}

// Invalidate drops cached rule expansions. Call after any task write.
func (e *Engine) Invalidate() {
	e.expander.Invalidate()
}

// Close releases background resources.
func (e *Engine) Close() {
	e.expander.Close()
}

// CalendarEvents projects the owner's tasks into the query window.
//
// Plain tasks appear directly when they overlap the window (inclusive
// on both ends); recurring tasks are expanded into occurrences with any
// stored overrides merged in. Skipped occurrences are omitted. As a side
// effect, overrides found to be redundant against the current parent
// are deleted, so a query can mutate storage state.
func (e *Engine) CalendarEvents(ctx context.Context, ownerID string, win Window) (*CalendarView, error) {
	if start, ok := win.Start.Get(); ok {
		if end, ok := win.End.Get(); ok && start.After(end) {
			return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange,
				start.Format(time.RFC3339), end.Format(time.RFC3339))
		}
	}

	tasks, err := e.store.ListTasks(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks for %q: %w", ownerID, err)
	}

	view := &CalendarView{
		Events:      []Event{},
		ParentTasks: []*storage.Task{},
	}

	var recurring []*storage.Task
	for _, t := range tasks {
		if t.Recurring() {
			recurring = append(recurring, t)
			continue
		}
		if ev, ok := e.plainEvent(t, win); ok {
			view.Events = append(view.Events, ev)
		}
	}

	if len(recurring) > 0 {
		overrides, err := e.prefetchOverrides(ctx, recurring, win)
		if err != nil {
			return nil, err
		}

		for _, t := range recurring {
			view.ParentTasks = append(view.ParentTasks, t)

			events, err := e.expandTask(ctx, t, win, overrides[t.ID])
			if err != nil {
				return nil, err
			}
			view.Events = append(view.Events, events...)
		}
	}

	sort.Slice(view.Events, func(i, j int) bool {
		if !view.Events[i].Start.Equal(view.Events[j].Start) {
			return view.Events[i].Start.Before(view.Events[j].Start)
		}
		return view.Events[i].ID < view.Events[j].ID
	})

	return view, nil
}

// plainEvent renders a non-recurring task if it overlaps the window.
func (e *Engine) plainEvent(t *storage.Task, win Window) (Event, bool) {
	if t.Start == nil {
		// Unscheduled tasks have no place on a range-bounded calendar.
		if win.Bounded() {
			return Event{}, false
		}
		return plainTaskEvent(t), true
	}

	start := *t.Start
	end := start
	if t.End != nil {
		end = *t.End
	}

	if ws, ok := win.Start.Get(); ok && end.Before(ws) {
		return Event{}, false
	}
	if we, ok := win.End.Get(); ok && start.After(we) {
		return Event{}, false
	}

	return plainTaskEvent(t), true
}

// prefetchOverrides bulk-loads overrides for the recurring tasks,
// bounded by the window dates when present, keyed by task id and date.
func (e *Engine) prefetchOverrides(ctx context.Context, tasks []*storage.Task, win Window) (map[string]map[time.Time]*storage.Override, error) {
	ids := make([]string, 0, len(tasks))
	maxDuration := time.Hour
	for _, t := range tasks {
		ids = append(ids, t.ID)
		if d := t.Duration(); d > maxDuration {
			maxDuration = d
		}
	}

	var start, end *time.Time
	if ws, ok := win.Start.Get(); ok {
		// Back-shift so overrides of occurrences that start before the
		// window but end inside it are still fetched.
		s := ws.Add(-maxDuration)
		start = &s
	}
	if we, ok := win.End.Get(); ok {
		endCopy := we
		end = &endCopy
	}

	list, err := e.store.ListOverrides(ctx, ids, start, end)
	if err != nil {
		return nil, fmt.Errorf("listing overrides: %w", err)
	}

	byTask := make(map[string]map[time.Time]*storage.Override)
	for _, ov := range list {
		m := byTask[ov.TaskID]
		if m == nil {
			m = make(map[time.Time]*storage.Override)
			byTask[ov.TaskID] = m
		}
		m[storage.DateOf(ov.Date)] = ov
	}
	return byTask, nil
}

// expandTask enumerates one recurring task's occurrences in the window
// and merges overrides.
func (e *Engine) expandTask(ctx context.Context, t *storage.Task, win Window, overrides map[time.Time]*storage.Override) ([]Event, error) {
	duration := t.Duration()

	// Occurrences whose end falls inside the window but whose start
	// precedes it must still be captured, hence the back-shift.
	lo := *t.Start
	if ws, ok := win.Start.Get(); ok {
		lo = ws.Add(-duration)
	}
	hi := lo.Add(e.expander.MaxTimeSpan())
	if we, ok := win.End.Get(); ok {
		hi = we
	}

	occurrences, truncated, err := e.expander.Occurrences(t, lo, hi)
	if err != nil {
		return nil, err
	}
	if truncated {
		e.logger.Warn("occurrence expansion truncated",
			"task_id", t.ID,
			"interval", t.Interval.String(),
			"range_start", lo,
			"range_end", hi)
	}

	var events []Event
	for _, occ := range occurrences {
		occDate := storage.DateOf(occ)
		plain := projectOccurrence(t, occ, duration)

		ov := overrides[occDate]
		if ov == nil {
			events = append(events, plain)
			continue
		}

		switch ov.Type {
		case storage.OverrideSkip:
			// Suppressed occurrence.

		case storage.OverrideModified:
			if ov.Data.RedundantFor(t) {
				// The parent caught up with the override; drop it so
				// stored state cannot diverge from what is displayed.
				if err := e.store.DeleteOverride(ctx, t.ID, occDate); err != nil && !errors.Is(err, storage.ErrNotFound) {
					e.logger.Warn("failed to delete redundant override",
						"task_id", t.ID,
						"date", occDate.Format("2006-01-02"),
						"error", err)
				} else {
					e.logger.Debug("deleted redundant override",
						"task_id", t.ID,
						"date", occDate.Format("2006-01-02"))
				}
				events = append(events, plain)
				continue
			}

			merged := applyPatch(plain, ov.Data)
			merged.ID = overrideID(ov.ID)
			merged.IsOverride = true
			events = append(events, merged)

		default:
			return nil, fmt.Errorf("override %q: unknown type %q", ov.ID, ov.Type)
		}
	}

	return events, nil
}
