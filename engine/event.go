package engine

import (
	"fmt"
	"time"

	"github.com/samber/mo"

	"github.com/taskfolk/agendo/storage"
)

// Window is the queried time range. Either bound may be absent; an
// absent bound leaves that side open (bounded internally by the
// expander's maximum time span for recurring tasks).
type Window struct {
	Start mo.Option[time.Time]
	End   mo.Option[time.Time]
}

// NewWindow builds a window from optional bounds.
func NewWindow(start, end *time.Time) Window {
	w := Window{Start: mo.None[time.Time](), End: mo.None[time.Time]()}
	if start != nil {
		w.Start = mo.Some(*start)
	}
	if end != nil {
		w.End = mo.Some(*end)
	}
	return w
}

// Bounded reports whether at least one bound is set.
func (w Window) Bounded() bool {
	return w.Start.IsPresent() || w.End.IsPresent()
}

// Event is one displayable calendar entry: a plain task, a projected
// occurrence of a recurring task, or an overridden occurrence. Events
// are computed per request and never persisted.
type Event struct {
	ID     string `json:"id"`
	TaskID string `json:"task_id"`

	Title    string `json:"title"`
	Note     string `json:"note,omitempty"`
	Color    string `json:"color,omitempty"`
	Status   string `json:"status,omitempty"`
	Priority int    `json:"priority,omitempty"`
	Type     string `json:"type,omitempty"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// IsInstance marks a projected occurrence of a recurring task.
	IsInstance bool `json:"is_instance"`
	// IsOverride marks an occurrence altered by a stored override.
	IsOverride bool `json:"is_override"`
	// Skipped marks a suppressed occurrence; only ever set on the
	// instance returned by PatchInstance, never on listed events.
	Skipped bool `json:"skipped,omitempty"`

	// OverrideStart and OverrideEnd surface time values stored in an
	// override's patch. They do not shift Start/End: displayed times
	// always derive from the rule instant plus the nominal duration.
	OverrideStart *time.Time `json:"override_start,omitempty"`
	OverrideEnd   *time.Time `json:"override_end,omitempty"`
}

// CalendarView is the result of materializing one query window.
type CalendarView struct {
	Events []Event `json:"events"`
	// ParentTasks lists the recurring parents whose occurrences appear
	// in Events. Parents are never events themselves.
	ParentTasks []*storage.Task `json:"parent_tasks"`
}

// instanceID is the synthetic id of a non-overridden occurrence.
func instanceID(taskID string, date time.Time) string {
	return fmt.Sprintf("instance_%s_%s", taskID, date.Format("2006-01-02"))
}

// overrideID is the id of an overridden occurrence.
func overrideID(id string) string {
	return "override_" + id
}

// projectOccurrence builds the plain (non-overridden) event for one
// occurrence instant.
func projectOccurrence(t *storage.Task, occ time.Time, duration time.Duration) Event {
	return Event{
		ID:          instanceID(t.ID, storage.DateOf(occ)),
		TaskID:      t.ID,
		Title:       t.Title,
		Note:        t.Note,
		Color:       t.Color,
		Status:      t.Status,
		Priority:    t.Priority,
		Type:        t.Type,
		Start:       occ,
		End:         occ.Add(duration),
		CompletedAt: t.CompletedAt,
		IsInstance:  true,
	}
}

// applyPatch overlays an override's field patch onto a projected event.
// Start/End from the patch are surfaced, not applied.
func applyPatch(ev Event, p storage.InstancePatch) Event {
	if p.Note != nil {
		ev.Note = *p.Note
	}
	if p.Status != nil {
		ev.Status = *p.Status
	}
	if p.Color != nil {
		ev.Color = *p.Color
	}
	if p.Priority != nil {
		ev.Priority = *p.Priority
	}
	if p.Type != nil {
		ev.Type = *p.Type
	}
	if p.CompletedAt != nil {
		ev.CompletedAt = p.CompletedAt
	}
	ev.OverrideStart = p.Start
	ev.OverrideEnd = p.End
	return ev
}

// plainTaskEvent renders a non-recurring task as an event.
func plainTaskEvent(t *storage.Task) Event {
	start := time.Time{}
	if t.Start != nil {
		start = *t.Start
	}
	end := start
	if t.End != nil {
		end = *t.End
	}
	return Event{
		ID:          t.ID,
		TaskID:      t.ID,
		Title:       t.Title,
		Note:        t.Note,
		Color:       t.Color,
		Status:      t.Status,
		Priority:    t.Priority,
		Type:        t.Type,
		Start:       start,
		End:         end,
		CompletedAt: t.CompletedAt,
	}
}
