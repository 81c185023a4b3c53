package model

import "time"

// Event is the normalized representation of one timetable entry, independent
// of how the portal delivered it. Fetch strategies produce it, the calendar
// builder consumes it; nothing else knows about the upstream shape.
type Event struct {
	// UID is the portal's stable identifier when it provides one. May be
	// empty; the calendar builder synthesizes a fallback in that case.
	UID string

	Summary     string
	Location    string
	Description string

	// Start / End are normalized to the configured calendar timezone.
	Start time.Time
	End   time.Time
}
