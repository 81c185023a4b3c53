package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nylv/edt-sync/internal/config"
)

func jsonConfig(serverURL string) config.Fetch {
	cfg := config.Defaults().Fetch
	cfg.Strategy = config.StrategyJSON
	cfg.EventsURL = serverURL + "/events"
	return cfg
}

func TestJSONFetcher(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(
			`{"events":[{"id":"1","title":"Math","start":"2024-01-01T08:00:00+01:00","end":"2024-01-01T09:00:00+01:00","room":"A1"}]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	loc := mustLocation(t, "Europe/Paris")
	fetcher, err := NewJSONFetcher(jsonConfig(server.URL), newTestClient(t, server.URL), loc)
	require.NoError(t, err)

	events, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, "1", events[0].UID)
	assert.Equal(t, "Math", events[0].Summary)
	assert.Equal(t, "A1", events[0].Location)
	assert.Empty(t, events[0].Description)
}

func TestJSONFetcherFailsOnBrokenBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json at all`))
	}))
	defer server.Close()

	loc := mustLocation(t, "Europe/Paris")
	cfg := config.Defaults().Fetch
	cfg.Strategy = config.StrategyJSON
	cfg.EventsURL = server.URL
	fetcher, err := NewJSONFetcher(cfg, newTestClient(t, server.URL), loc)
	require.NoError(t, err)

	_, err = fetcher.Fetch(context.Background())
	assert.Error(t, err, "the events endpoint promises JSON; garbage is fatal here")
}

func TestJSONFetcherFailsOnNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	loc := mustLocation(t, "Europe/Paris")
	cfg := config.Defaults().Fetch
	cfg.Strategy = config.StrategyJSON
	cfg.EventsURL = server.URL
	fetcher, err := NewJSONFetcher(cfg, newTestClient(t, server.URL), loc)
	require.NoError(t, err)

	_, err = fetcher.Fetch(context.Background())
	assert.Error(t, err)
}

func TestNewJSONFetcherRequiresEventsURL(t *testing.T) {
	loc := mustLocation(t, "Europe/Paris")
	cfg := config.Defaults().Fetch
	cfg.Strategy = config.StrategyJSON

	_, err := NewJSONFetcher(cfg, nil, loc)
	assert.Error(t, err)
}

func TestNewSelectsStrategy(t *testing.T) {
	loc := mustLocation(t, "Europe/Paris")
	client := newTestClientNoServer(t)

	jsf := config.Defaults().Fetch
	jsf.Strategy = config.StrategyJSF
	jsf.PlanningURL = "https://ent.example.edu/faces/Planning.xhtml"
	f, err := New(jsf, client, loc)
	require.NoError(t, err)
	assert.IsType(t, &JSFFetcher{}, f)

	direct := config.Defaults().Fetch
	direct.Strategy = config.StrategyJSON
	direct.EventsURL = "https://ent.example.edu/events"
	f, err = New(direct, client, loc)
	require.NoError(t, err)
	assert.IsType(t, &JSONFetcher{}, f)

	_, err = New(config.Fetch{Strategy: "soap"}, client, loc)
	assert.Error(t, err)
}
