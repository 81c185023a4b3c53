package portal

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/Nylv/edt-sync/internal/config"
)

// Client owns the authenticated portal session. The cookie jar carries the
// login state; every later request must go through the same Client.
type Client struct {
	httpClient *http.Client
	cfg        config.Portal
}

// NewClient validates the portal configuration and builds a session-holding
// HTTP client. No network I/O happens here.
func NewClient(cfg config.Portal) (*Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("portal credentials are not set")
	}
	if cfg.LoginURL == "" {
		return nil, errors.New("portal login URL is not set")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport
	if cfg.InsecureSkipVerify {
		log.Warn("TLS certificate validation is disabled for portal requests")
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Client{
		httpClient: &http.Client{
			Jar:       jar,
			Transport: transport,
		},
		cfg: cfg,
	}, nil
}

// Login submits the credential form. The portal does not return a structured
// success body; a 2xx response with the session cookies set is all there is,
// so a nil error means "assume authenticated".
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{
		"username": {c.cfg.Username},
		"password": {c.cfg.Password},
	}

	log.Infof("logging in to %s", RedactURL(c.cfg.LoginURL))

	resp, err := c.PostForm(ctx, c.cfg.LoginURL, form, nil)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("login failed: %s", resp.Status)
	}
	return nil
}

// Get performs a session GET. Callers own the response body.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}

// PostForm performs a session form-encoded POST with optional extra headers.
// Callers own the response body.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, headers http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for key, values := range headers {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}
	return c.httpClient.Do(req)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// RedactURL hides the path and query of a URL for logging. Planning URLs can
// embed student identifiers.
func RedactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
