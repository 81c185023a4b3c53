package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Nylv/edt-sync/internal/config"
	"github.com/Nylv/edt-sync/internal/model"
	"github.com/Nylv/edt-sync/internal/portal"
)

// JSONFetcher talks to the portals that expose the timetable as plain JSON:
// a single GET, no token, no date-range haggling.
type JSONFetcher struct {
	cfg    config.Fetch
	client *portal.Client
	loc    *time.Location
}

// NewJSONFetcher validates the json strategy configuration. No network I/O.
func NewJSONFetcher(cfg config.Fetch, client *portal.Client, loc *time.Location) (*JSONFetcher, error) {
	if cfg.EventsURL == "" {
		return nil, errors.New("events URL is not set")
	}
	return &JSONFetcher{cfg: cfg, client: client, loc: loc}, nil
}

// Fetch returns the timetable from the events endpoint. Unlike the JSF
// partial-update path, an undecodable body here is an error: the endpoint
// promises JSON.
func (f *JSONFetcher) Fetch(ctx context.Context) ([]model.Event, error) {
	resp, err := f.client.Get(ctx, f.cfg.EventsURL)
	if err != nil {
		return nil, fmt.Errorf("fetching events: %w", err)
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("reading events response: %w", err)
	}

	var envelope eventsEnvelope
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return nil, fmt.Errorf("decoding events response: %w", err)
	}

	return normalize(envelope.Events, f.loc), nil
}
