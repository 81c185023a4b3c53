package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Nylv/edt-sync/internal/config"
	"github.com/Nylv/edt-sync/internal/model"
	"github.com/Nylv/edt-sync/internal/portal"
)

// JSFFetcher replays the planning widget's AJAX exchange against a JSF
// portal: fetch the planning page for the ViewState token, then POST the
// partial-update request the browser's calendar widget would send, then dig
// the event JSON out of the XML envelope.
type JSFFetcher struct {
	cfg    config.Fetch
	client *portal.Client
	loc    *time.Location

	// now is swappable for tests; the week range depends on it.
	now func() time.Time
}

// NewJSFFetcher validates the jsf strategy configuration. No network I/O.
func NewJSFFetcher(cfg config.Fetch, client *portal.Client, loc *time.Location) (*JSFFetcher, error) {
	if cfg.PlanningURL == "" {
		return nil, errors.New("planning URL is not set")
	}
	return &JSFFetcher{cfg: cfg, client: client, loc: loc, now: time.Now}, nil
}

// Fetch returns the current week's timetable.
//
// A response that carries no recognizable event JSON is treated as zero
// events, not an error: the widget legitimately answers with an empty
// partial update outside term time.
func (f *JSFFetcher) Fetch(ctx context.Context) ([]model.Event, error) {
	resp, err := f.client.Get(ctx, f.cfg.PlanningURL)
	if err != nil {
		return nil, fmt.Errorf("fetching planning page: %w", err)
	}
	page, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("reading planning page: %w", err)
	}

	viewState, err := extractViewState(page)
	if err != nil {
		return nil, err
	}

	now := f.now()
	body, err := f.postPartialUpdate(ctx, viewState, now)
	if err != nil {
		return nil, err
	}

	payload := extractEmbeddedJSON(body)
	if payload == "" {
		log.Warnf("no JSON object in the planning response (%d bytes); assuming zero events", len(body))
		return nil, nil
	}

	var envelope eventsEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		log.Warnf("undecodable planning payload: %v; assuming zero events", err)
		return nil, nil
	}

	return normalize(envelope.Events, f.loc), nil
}

// postPartialUpdate sends the widget's AJAX POST and returns the raw
// partial-update body.
func (f *JSFFetcher) postPartialUpdate(ctx context.Context, viewState string, now time.Time) (string, error) {
	startMillis, endMillis := weekRange(now)
	isoYear, isoWeek := now.ISOWeek()

	source := f.cfg.FormSource
	form := url.Values{
		"javax.faces.partial.ajax":    {"true"},
		"javax.faces.source":          {source},
		"javax.faces.partial.execute": {source},
		"javax.faces.partial.render":  {source},
		source:                        {source},
		source + "_start":             {millis(startMillis)},
		source + "_end":               {millis(endMillis)},
		"form":                        {"form"},
		"form:largeurDivCenter":       {""},
		"form:idInit":                 {f.cfg.WidgetID},
		"form:date_input":             {now.Format("02/01/2006")},
		"form:week":                   {fmt.Sprintf("%d-%d", isoWeek, isoYear)},
		source + "_view":              {"agendaWeek"},
		"form:offsetFuseauNavigateur": {"-3600000"},
		"form:onglets_activeIndex":    {"0"},
		"form:onglets_scrollState":    {"0"},
		"javax.faces.ViewState":       {viewState},
	}

	headers := http.Header{}
	headers.Set("Faces-Request", "partial/ajax")
	headers.Set("X-Requested-With", "XMLHttpRequest")
	headers.Set("Accept", "application/xml, text/xml, */*; q=0.01")

	resp, err := f.client.PostForm(ctx, f.cfg.PlanningURL, form, headers)
	if err != nil {
		return "", fmt.Errorf("planning AJAX request: %w", err)
	}
	body, err := readBody(resp)
	if err != nil {
		return "", fmt.Errorf("reading planning AJAX response: %w", err)
	}
	return body, nil
}

// readBody consumes and closes resp, failing on non-2xx statuses.
func readBody(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
