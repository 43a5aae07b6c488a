package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/taskfolk/agendo/storage"
)

// Rule enumerates the occurrence start instants of one recurring task.
// It is stateless: Between may be called repeatedly with any ranges.
type Rule struct {
	rule *rrule.RRule
}

// BuildRule derives a Rule from a task's recurrence settings. Returns
// (nil, nil) when the task is not recurring (no interval or no start).
//
// The task's start is the phase anchor: every occurrence keeps its time
// of day. Unless the task is infinite, its end bounds the recurrence.
func BuildRule(t *storage.Task) (*Rule, error) {
	if t.Interval == storage.IntervalNone || t.Start == nil {
		return nil, nil
	}

	opt := rrule.ROption{
		Dtstart: *t.Start,
	}

	switch t.Interval {
	case storage.IntervalDaily:
		opt.Freq = rrule.DAILY
	case storage.IntervalWeekly:
		opt.Freq = rrule.WEEKLY
	case storage.IntervalMonthly:
		opt.Freq = rrule.MONTHLY
	case storage.IntervalYearly:
		opt.Freq = rrule.YEARLY
	case storage.IntervalWorkdays:
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR}
	default:
		return nil, fmt.Errorf("task %q: unsupported interval %v", t.ID, t.Interval)
	}

	if !t.Infinite && t.End != nil {
		opt.Until = *t.End
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("task %q: building recurrence rule: %w", t.ID, err)
	}

	return &Rule{rule: r}, nil
}

// Between returns the occurrence start instants within the range,
// ascending. Occurrences never precede the rule's anchor, even when the
// range does.
func (r *Rule) Between(start, end time.Time, inclusive bool) []time.Time {
	return r.rule.Between(start, end, inclusive)
}

// String returns the RRULE text, used for cache keying and logging.
func (r *Rule) String() string {
	return r.rule.String()
}
