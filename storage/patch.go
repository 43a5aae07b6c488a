package storage

import "time"

// InstancePatch is the set of task fields that may be overridden on a
// single occurrence. A nil field is "not overridden". The struct itself
// is the allow-list: anything a client sends outside these fields is
// dropped before it reaches storage.
//
// Start and End are accepted and stored but do not shift the displayed
// time of an occurrence; display times always come from the recurrence
// rule instant plus the task's nominal duration.
type InstancePatch struct {
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	Note        *string    `json:"note,omitempty"`
	Status      *string    `json:"status,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Color       *string    `json:"color,omitempty"`
	Priority    *int       `json:"priority,omitempty"`
	Type        *string    `json:"type,omitempty"`
}

// IsEmpty reports whether no field is overridden.
func (p InstancePatch) IsEmpty() bool {
	return p.Start == nil && p.End == nil && p.Note == nil && p.Status == nil &&
		p.CompletedAt == nil && p.Color == nil && p.Priority == nil && p.Type == nil
}

// DiffFrom reduces the patch to the fields that actually differ from
// the parent task. Start and End compare by time of day only, since an
// occurrence necessarily falls on a different date than the parent
// anchor; everything else compares exactly.
func (p InstancePatch) DiffFrom(t *Task) InstancePatch {
	var out InstancePatch
	if p.Start != nil && !sameClock(p.Start, t.Start) {
		out.Start = p.Start
	}
	if p.End != nil && !sameClock(p.End, t.End) {
		out.End = p.End
	}
	if p.Note != nil && *p.Note != t.Note {
		out.Note = p.Note
	}
	if p.Status != nil && *p.Status != t.Status {
		out.Status = p.Status
	}
	if p.CompletedAt != nil && !sameInstant(p.CompletedAt, t.CompletedAt) {
		out.CompletedAt = p.CompletedAt
	}
	if p.Color != nil && *p.Color != t.Color {
		out.Color = p.Color
	}
	if p.Priority != nil && *p.Priority != t.Priority {
		out.Priority = p.Priority
	}
	if p.Type != nil && *p.Type != t.Type {
		out.Type = p.Type
	}
	return out
}

// RedundantFor reports whether every overridden field matches the
// parent task, i.e. the patch no longer changes anything. Such an
// override must be deleted rather than kept.
func (p InstancePatch) RedundantFor(t *Task) bool {
	return p.DiffFrom(t).IsEmpty()
}

// sameClock compares two instants by time of day only.
func sameClock(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ah, am, as := a.Clock()
	bh, bm, bs := b.Clock()
	return ah == bh && am == bm && as == bs
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
