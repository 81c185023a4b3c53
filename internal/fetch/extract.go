package fetch

import (
	"errors"
	"regexp"
)

// The portal pages are uncontrolled upstream HTML/XML; the two values the
// pipeline needs are each located by a single fixed marker. Keeping both
// matches in this file insulates the rest of the fetcher from upstream
// markup changes.

var (
	viewStateRe    = regexp.MustCompile(`name="javax\.faces\.ViewState" value="([^"]+)"`)
	embeddedJSONRe = regexp.MustCompile(`(?s)\{.*\}`)
)

// ErrNoViewState is returned when the planning page carries no ViewState
// token, which usually means the session was not accepted.
var ErrNoViewState = errors.New("no ViewState token on the planning page")

// extractViewState pulls the JSF ViewState token out of the planning page.
func extractViewState(page string) (string, error) {
	m := viewStateRe.FindStringSubmatch(page)
	if m == nil {
		return "", ErrNoViewState
	}
	return m[1], nil
}

// extractEmbeddedJSON locates the first brace-delimited object inside a JSF
// partial-update response. The empty string means no object was found.
func extractEmbeddedJSON(body string) string {
	return embeddedJSONRe.FindString(body)
}
