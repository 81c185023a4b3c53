package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Nylv/edt-sync/internal/config"
	"github.com/Nylv/edt-sync/internal/model"
	"github.com/Nylv/edt-sync/internal/portal"
)

// Fetcher retrieves the timetable for an already-authenticated session.
// The two portal generations expose the same data through different
// transports, so the pipeline only depends on this interface.
type Fetcher interface {
	Fetch(ctx context.Context) ([]model.Event, error)
}

// New builds the fetch strategy selected by cfg.
func New(cfg config.Fetch, client *portal.Client, loc *time.Location) (Fetcher, error) {
	switch cfg.Strategy {
	case config.StrategyJSF:
		return NewJSFFetcher(cfg, client, loc)
	case config.StrategyJSON:
		return NewJSONFetcher(cfg, client, loc)
	default:
		return nil, fmt.Errorf("unknown fetch strategy %q", cfg.Strategy)
	}
}

// eventsEnvelope matches the payload both portal variants return: a
// top-level "events" array.
type eventsEnvelope struct {
	Events []rawEvent `json:"events"`
}

// rawEvent is one timetable entry as the portal serializes it.
type rawEvent struct {
	ID          scalar `json:"id"`
	Title       string `json:"title"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Room        string `json:"room"`
	Description string `json:"description"`
}

// scalar tolerates the id arriving as a JSON string or a number depending on
// the portal version, and always exposes it as a string.
type scalar string

func (s *scalar) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = scalar(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = scalar(num.String())
	return nil
}

// defaultSummary is used when the portal omits an entry title.
const defaultSummary = "Cours"

// normalize maps raw portal entries into model events in the target
// timezone. An entry with an unparsable timestamp is logged and skipped;
// one bad record never aborts the batch.
func normalize(raw []rawEvent, loc *time.Location) []model.Event {
	events := make([]model.Event, 0, len(raw))
	for _, item := range raw {
		start, err := parseISO(item.Start, loc)
		if err != nil {
			log.Warnf("skipping event %q: bad start time %q: %v", item.ID, item.Start, err)
			continue
		}
		end, err := parseISO(item.End, loc)
		if err != nil {
			log.Warnf("skipping event %q: bad end time %q: %v", item.ID, item.End, err)
			continue
		}
		if end.Before(start) {
			log.Warnf("event %q ends before it starts (%s > %s)", item.ID, start, end)
		}

		summary := item.Title
		if summary == "" {
			summary = defaultSummary
		}

		events = append(events, model.Event{
			UID:         string(item.ID),
			Summary:     summary,
			Start:       start,
			End:         end,
			Location:    item.Room,
			Description: item.Description,
		})
	}
	return events
}

// isoLayouts covers the timestamp shapes the portal has been seen emitting.
// Offset-less values are interpreted in the target timezone so output does
// not depend on the runner's local zone.
var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseISO(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	var firstErr error
	for _, layout := range isoLayouts {
		t, err := time.ParseInLocation(layout, value, loc)
		if err == nil {
			return t.In(loc), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// weekRange returns the current calendar week (Monday-based) as the
// millisecond timestamps the planning widget expects. The boundaries keep
// now's time of day; the widget only cares that the range covers the week.
func weekRange(now time.Time) (startMillis, endMillis int64) {
	offset := (int(now.Weekday()) + 6) % 7
	start := now.AddDate(0, 0, -offset)
	end := start.AddDate(0, 0, 7)
	return start.UnixMilli(), end.UnixMilli()
}

func millis(v int64) string {
	return strconv.FormatInt(v, 10)
}
