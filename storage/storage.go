package storage

import (
	"context"
	"errors"
	"time"
)

// Storage connects a backend (database, in-memory map) with the engine.
// Please use the error values provided; the engine matches on them.
//
// Each call is atomic on its own. There is no cross-call transaction:
// concurrent writes to the same (task, date) override are last-write-wins.
type Storage interface {
	// GetTask retrieves one task by owner and id.
	GetTask(ctx context.Context, ownerID, taskID string) (*Task, error)
	// ListTasks retrieves all tasks belonging to an owner.
	ListTasks(ctx context.Context, ownerID string) ([]*Task, error)
	// CreateTask stores a new task. The caller sets the ID.
	CreateTask(ctx context.Context, task *Task) error
	// UpdateTask replaces an existing task.
	UpdateTask(ctx context.Context, task *Task) error
	// DeleteTask removes a task and all overrides hanging off it.
	DeleteTask(ctx context.Context, ownerID, taskID string) error

	// GetOverride finds the override for one occurrence date, if any.
	GetOverride(ctx context.Context, taskID string, date time.Time) (*Override, error)
	// ListOverrides retrieves overrides for the given tasks whose date
	// falls within [start, end]. A nil bound means unbounded on that
	// side; with both bounds nil, all overrides for the tasks are
	// returned.
	ListOverrides(ctx context.Context, taskIDs []string, start, end *time.Time) ([]*Override, error)
	// PutOverride upserts an override keyed by (TaskID, Date). When no
	// override exists for that key, a new ID is assigned on the passed
	// struct; otherwise the existing record's type and data are
	// overwritten and its ID is copied back.
	PutOverride(ctx context.Context, ov *Override) error
	// DeleteOverride removes the override for one occurrence date.
	DeleteOverride(ctx context.Context, taskID string, date time.Time) error
}

var (
	// ErrNotFound is returned when a requested record doesn't exist
	ErrNotFound = errors.New("record not found")
	// ErrInvalidInput is returned when the input parameters are invalid
	ErrInvalidInput = errors.New("invalid input parameters")
	// ErrConflict is returned when there's a conflict with an existing record
	ErrConflict = errors.New("record conflict")
	// ErrStorageUnavailable is returned when the storage backend is unavailable
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Task is a to-do item, possibly recurring. A task with a non-None
// Interval and a Start time is a recurring parent: it is never shown
// directly on the calendar, only through its projected occurrences.
type Task struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`

	Title    string `json:"title"`
	Note     string `json:"note,omitempty"`
	Color    string `json:"color,omitempty"`
	Status   string `json:"status,omitempty"`
	Priority int    `json:"priority,omitempty"`
	// Type is a free-form category label ("task", "habit", ...).
	Type string `json:"type,omitempty"`

	// Start anchors the first occurrence; its time of day is the time
	// of day of every occurrence. Nil means the task is unscheduled.
	Start *time.Time `json:"start,omitempty"`
	// End bounds the first occurrence and, together with Start, defines
	// the nominal duration of every occurrence.
	End *time.Time `json:"end,omitempty"`

	Interval Interval `json:"interval"`
	// Infinite disables the recurrence end bound; End then only
	// contributes the nominal duration.
	Infinite bool `json:"infinite,omitempty"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// Recurring reports whether the task expands into occurrences.
func (t *Task) Recurring() bool {
	return t.Interval != IntervalNone && t.Start != nil
}

// Duration is the nominal occurrence duration, End − Start. Missing or
// non-positive spans default to one hour.
func (t *Task) Duration() time.Duration {
	if t.Start == nil || t.End == nil {
		return time.Hour
	}
	d := t.End.Sub(*t.Start)
	if d <= 0 {
		return time.Hour
	}
	return d
}

// OverrideType is the kind of per-occurrence exception.
type OverrideType string

const (
	// OverrideModified carries a field patch for one occurrence.
	OverrideModified OverrideType = "modified"
	// OverrideSkip suppresses one occurrence entirely.
	OverrideSkip OverrideType = "skip"
)

// Override is a persisted exception to one occurrence of a recurring
// task, keyed by (TaskID, Date). At most one override exists per key.
type Override struct {
	ID     string       `json:"id"`
	TaskID string       `json:"task_id"`
	// Date is the occurrence's calendar date, normalized to midnight UTC.
	Date time.Time    `json:"date"`
	Type OverrideType `json:"type"`
	// Data holds the overriding field values; zero for skip overrides.
	Data InstancePatch `json:"data"`

	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// DateOf normalizes an instant to its calendar date at midnight UTC.
// Override keys and date-only comparisons all go through this.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date into its midnight-UTC form.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}
