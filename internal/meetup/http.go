package meetup

import (
	"net/http"
	"time"
)

const defaultHTTPTimeout = 15 * time.Second

// NewHTTPClient returns the client used for both the token exchange and the
// event query. A non-positive timeout falls back to 15s.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// redactURL hides paths and query strings of upstream URLs for logging.
//
//	https://api.meetup.com/gql-ext?x=y -> https://api.meetup.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	// Find scheme separator.
	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "...(redacted)"
	}

	// Find next slash after host.
	j := i
	for j < len(u) && u[j] != '/' && u[j] != '?' {
		j++
	}

	return u[:j] + redactedSuffix
}
