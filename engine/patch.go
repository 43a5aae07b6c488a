package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taskfolk/agendo/storage"
)

// PatchRequest is a requested change to one occurrence of a recurring
// task. Skip suppresses the occurrence; otherwise Fields carries the
// edit, already restricted to the overridable field set by its type.
type PatchRequest struct {
	Skip   bool                  `json:"skip,omitempty"`
	Fields storage.InstancePatch `json:"fields"`
}

// PatchInstance records a per-occurrence edit as an override, or
// removes the override when the edit no longer diverges from the
// parent. The parent task itself is never modified.
//
// date is a calendar date in YYYY-MM-DD form. Returns the merged view
// of the patched instance.
func (e *Engine) PatchInstance(ctx context.Context, ownerID, taskID, date string, req PatchRequest) (*Event, error) {
	day, err := storage.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	task, err := e.store.GetTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, fmt.Errorf("loading parent task %q: %w", taskID, err)
	}

	instance := e.instanceOn(task, day)

	if req.Skip {
		ov := &storage.Override{
			TaskID: taskID,
			Date:   day,
			Type:   storage.OverrideSkip,
		}
		if err := e.store.PutOverride(ctx, ov); err != nil {
			return nil, fmt.Errorf("storing skip override: %w", err)
		}
		e.logger.Info("occurrence skipped", "task_id", taskID, "date", date)

		instance.ID = overrideID(ov.ID)
		instance.IsOverride = true
		instance.Skipped = true
		return &instance, nil
	}

	changed := req.Fields.DiffFrom(task)

	if changed.IsEmpty() {
		// Full revert: the edit matches the parent on every field, so
		// any stored override is now pointless.
		err := e.store.DeleteOverride(ctx, taskID, day)
		switch {
		case err == nil:
			e.logger.Info("override reverted", "task_id", taskID, "date", date)
		case errors.Is(err, storage.ErrNotFound):
			// Nothing stored; nothing to revert.
		default:
			return nil, fmt.Errorf("deleting reverted override: %w", err)
		}
		return &instance, nil
	}

	ov := &storage.Override{
		TaskID: taskID,
		Date:   day,
		Type:   storage.OverrideModified,
		Data:   changed,
	}
	if err := e.store.PutOverride(ctx, ov); err != nil {
		return nil, fmt.Errorf("storing override: %w", err)
	}
	e.logger.Info("occurrence overridden", "task_id", taskID, "date", date)

	merged := applyPatch(instance, changed)
	merged.ID = overrideID(ov.ID)
	merged.IsOverride = true
	return &merged, nil
}

// instanceOn projects the parent onto one calendar date: the occurrence
// keeps the parent's time of day and nominal duration.
func (e *Engine) instanceOn(t *storage.Task, day time.Time) Event {
	duration := t.Duration()

	occ := day
	if t.Start != nil {
		h, m, s := t.Start.Clock()
		occ = time.Date(day.Year(), day.Month(), day.Day(), h, m, s, 0, t.Start.Location())
	}

	return projectOccurrence(t, occ, duration)
}

// Reconcile sweeps the owner's overrides and deletes the redundant
// ones: modified overrides whose patch no longer differs from the
// parent. The pass is idempotent and safe to run on a schedule; the
// same cleanup also happens lazily during CalendarEvents.
func (e *Engine) Reconcile(ctx context.Context, ownerID string) (int, error) {
	tasks, err := e.store.ListTasks(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("listing tasks for %q: %w", ownerID, err)
	}

	byID := make(map[string]*storage.Task, len(tasks))
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	overrides, err := e.store.ListOverrides(ctx, ids, nil, nil)
	if err != nil {
		return 0, fmt.Errorf("listing overrides: %w", err)
	}

	removed := 0
	for _, ov := range overrides {
		if ov.Type != storage.OverrideModified {
			continue
		}
		task := byID[ov.TaskID]
		if task == nil || !ov.Data.RedundantFor(task) {
			continue
		}
		if err := e.store.DeleteOverride(ctx, ov.TaskID, ov.Date); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return removed, fmt.Errorf("deleting redundant override %q: %w", ov.ID, err)
		}
		removed++
	}

	if removed > 0 {
		e.logger.Info("reconcile removed redundant overrides",
			"owner_id", ownerID, "count", removed)
	}
	return removed, nil
}
