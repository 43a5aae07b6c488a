// Package ical renders materialized calendar views as iCalendar feeds.
package ical

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/taskfolk/agendo/engine"
)

const prodID = "-//taskfolk//agendo//EN"

// Export converts a materialized view into a VCALENDAR. Every event in
// the view becomes a VEVENT; parent tasks are not exported since their
// occurrences already are.
func Export(view *engine.CalendarView, name string) (*ical.Calendar, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, prodID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	if name != "" {
		cal.Props.SetText(ical.PropName, name)
	}

	for _, ev := range view.Events {
		vevent, err := exportEvent(ev)
		if err != nil {
			return nil, err
		}
		cal.Children = append(cal.Children, vevent.Component)
	}

	return cal, nil
}

// Write encodes the view as an iCalendar stream.
func Write(w io.Writer, view *engine.CalendarView, name string) error {
	cal, err := Export(view, name)
	if err != nil {
		return err
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encoding calendar feed: %w", err)
	}
	return nil
}

func exportEvent(ev engine.Event) (*ical.Event, error) {
	if ev.Start.IsZero() {
		return nil, fmt.Errorf("event %q has no start time", ev.ID)
	}

	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, ev.ID+"@agendo")
	vevent.Props.SetText(ical.PropSummary, ev.Title)
	if ev.Note != "" {
		vevent.Props.SetText(ical.PropDescription, ev.Note)
	}
	if ev.Color != "" {
		vevent.Props.SetText(ical.PropColor, ev.Color)
	}
	if len(ev.Type) > 0 {
		vevent.Props.SetText(ical.PropCategories, strings.ToUpper(ev.Type))
	}
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	vevent.Props.SetDateTime(ical.PropDateTimeStart, ev.Start)
	vevent.Props.SetDateTime(ical.PropDateTimeEnd, ev.End)
	if ev.CompletedAt != nil {
		vevent.Props.SetText(ical.PropStatus, "COMPLETED")
	}

	return vevent, nil
}
