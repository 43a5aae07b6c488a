package ical

import (
	"bytes"
	"strings"
	"testing"
	"time"

	goical "github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskfolk/agendo/engine"
)

func timePtr(t time.Time) *time.Time { return &t }

func testView() *engine.CalendarView {
	return &engine.CalendarView{
		Events: []engine.Event{
			{
				ID:         "instance_gym_2025-01-20",
				TaskID:     "gym",
				Title:      "Gym",
				Note:       "leg day",
				Type:       "habit",
				Start:      time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC),
				End:        time.Date(2025, 1, 20, 10, 0, 0, 0, time.UTC),
				IsInstance: true,
			},
			{
				ID:          "dentist",
				TaskID:      "dentist",
				Title:       "Dentist",
				Start:       time.Date(2025, 1, 22, 14, 0, 0, 0, time.UTC),
				End:         time.Date(2025, 1, 22, 15, 0, 0, 0, time.UTC),
				CompletedAt: timePtr(time.Date(2025, 1, 22, 15, 0, 0, 0, time.UTC)),
			},
		},
	}
}

func TestExport(t *testing.T) {
	cal, err := Export(testView(), "agendo")
	require.NoError(t, err)

	prodProp := cal.Props.Get(goical.PropProductID)
	require.NotNil(t, prodProp)
	assert.Equal(t, "-//taskfolk//agendo//EN", prodProp.Value)

	nameProp := cal.Props.Get(goical.PropName)
	require.NotNil(t, nameProp)
	assert.Equal(t, "agendo", nameProp.Value)

	require.Len(t, cal.Children, 2)

	first := cal.Children[0]
	assert.Equal(t, goical.CompEvent, first.Name)
	assert.Equal(t, "instance_gym_2025-01-20@agendo", first.Props.Get(goical.PropUID).Value)
	assert.Equal(t, "Gym", first.Props.Get(goical.PropSummary).Value)
	assert.Equal(t, "leg day", first.Props.Get(goical.PropDescription).Value)
	assert.Equal(t, "HABIT", first.Props.Get(goical.PropCategories).Value)
	assert.Nil(t, first.Props.Get(goical.PropStatus))

	second := cal.Children[1]
	assert.Equal(t, "dentist@agendo", second.Props.Get(goical.PropUID).Value)
	require.NotNil(t, second.Props.Get(goical.PropStatus))
	assert.Equal(t, "COMPLETED", second.Props.Get(goical.PropStatus).Value)
}

func TestExport_NoName(t *testing.T) {
	cal, err := Export(&engine.CalendarView{}, "")
	require.NoError(t, err)
	assert.Nil(t, cal.Props.Get(goical.PropName))
	assert.Empty(t, cal.Children)
}

func TestExport_EventWithoutStart(t *testing.T) {
	view := &engine.CalendarView{
		Events: []engine.Event{{ID: "broken", Title: "no start"}},
	}
	_, err := Export(view, "agendo")
	assert.Error(t, err)
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testView(), "agendo"))

	out := buf.String()
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "END:VCALENDAR")
	assert.Contains(t, out, "SUMMARY:Gym")
	assert.Contains(t, out, "DTSTART:20250120T090000Z")
	assert.Contains(t, out, "DTEND:20250120T100000Z")

	// The stream round-trips through the decoder.
	decoded, err := goical.NewDecoder(strings.NewReader(out)).Decode()
	require.NoError(t, err)
	assert.Len(t, decoded.Children, 2)
}
