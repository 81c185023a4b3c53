package portal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nylv/edt-sync/internal/config"
)

func TestNewClientRejectsIncompleteConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Portal
	}{
		{"missing username", config.Portal{Password: "p", LoginURL: "https://ent.example.edu/login"}},
		{"missing password", config.Portal{Username: "u", LoginURL: "https://ent.example.edu/login"}},
		{"missing login URL", config.Portal{Username: "u", Password: "p"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestLoginSubmitsCredentialsAndKeepsSession(t *testing.T) {
	var gotUser, gotPass string

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotUser = r.PostFormValue("username")
		gotPass = r.PostFormValue("password")
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc123", Path: "/"})
	})
	mux.HandleFunc("/planning", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("JSESSIONID")
		if err != nil || cookie.Value != "abc123" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(config.Portal{
		Username: "student",
		Password: "secret",
		LoginURL: server.URL + "/login",
	})
	require.NoError(t, err)

	require.NoError(t, client.Login(context.Background()))
	assert.Equal(t, "student", gotUser)
	assert.Equal(t, "secret", gotPass)

	// The session cookie from login must ride along on later requests.
	resp, err := client.Get(context.Background(), server.URL+"/planning")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginFailsOnNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := NewClient(config.Portal{Username: "u", Password: "p", LoginURL: server.URL})
	require.NoError(t, err)

	err = client.Login(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login failed")
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t,
		"https://ent.example.edu/...(redacted)",
		RedactURL("https://ent.example.edu/faces/Planning.xhtml?user=1234"))
	assert.Equal(t, "(redacted)", RedactURL("not a url"))
}
