package storage

import (
	"encoding/json"
	"fmt"
)

// Interval is the recurrence frequency of a task.
type Interval int

const (
	// IntervalNone means the task does not recur.
	IntervalNone Interval = iota
	IntervalDaily
	IntervalWeekly
	IntervalMonthly
	IntervalYearly
	// IntervalWorkdays recurs weekly on Monday through Friday.
	IntervalWorkdays
)

// String provides the wire representation of the interval.
func (i Interval) String() string {
	switch i {
	case IntervalDaily:
		return "daily"
	case IntervalWeekly:
		return "weekly"
	case IntervalMonthly:
		return "monthly"
	case IntervalYearly:
		return "yearly"
	case IntervalWorkdays:
		return "workdays"
	default:
		return "none"
	}
}

// ParseInterval converts a wire string into an Interval. The empty
// string and "none" both mean not recurring.
func ParseInterval(s string) (Interval, error) {
	switch s {
	case "", "none":
		return IntervalNone, nil
	case "daily":
		return IntervalDaily, nil
	case "weekly":
		return IntervalWeekly, nil
	case "monthly":
		return IntervalMonthly, nil
	case "yearly":
		return IntervalYearly, nil
	case "workdays":
		return IntervalWorkdays, nil
	default:
		return IntervalNone, fmt.Errorf("%w: unknown interval %q", ErrInvalidInput, s)
	}
}

// MarshalJSON encodes the interval as its string form.
func (i Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}

// UnmarshalJSON decodes the interval from its string form.
func (i *Interval) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseInterval(s)
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
