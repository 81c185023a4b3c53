package ical

import (
	"fmt"

	ics "github.com/arran4/golang-ical"

	"github.com/Nylv/edt-sync/internal/model"
)

// Build turns normalized events into a VCALENDAR. It is a pure mapping:
// every record yields exactly one VEVENT, in input order, and nothing here
// depends on the wall clock, so identical input serializes identically.
func Build(events []model.Event, prodID string) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetProductId(prodID)
	cal.SetVersion("2.0")

	for _, e := range events {
		uid := e.UID
		if uid == "" {
			uid = fmt.Sprintf("%s-%d", e.Summary, e.Start.Unix())
		}
		vevent := cal.AddEvent(uid)
		vevent.SetSummary(e.Summary)
		vevent.SetStartAt(e.Start)
		vevent.SetEndAt(e.End)
		if e.Location != "" {
			vevent.SetLocation(e.Location)
		}
		if e.Description != "" {
			vevent.SetDescription(e.Description)
		}
	}
	return cal
}
