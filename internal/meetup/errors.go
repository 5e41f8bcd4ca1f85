package meetup

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingCredentials means no usable credential source was configured.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrGraphQL means the query response carried an error list.
	ErrGraphQL = errors.New("graphql errors in response")
	// ErrMalformedResponse means the response lacked the expected group object
	// or could not be decoded.
	ErrMalformedResponse = errors.New("malformed response")
)

// AuthError reports a failed token acquisition. StatusCode and Body are set
// when the exchange endpoint answered with a non-success status.
type AuthError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	var b strings.Builder
	b.WriteString("auth")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": token exchange returned %d", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Body != "" {
		b.WriteString(": ")
		b.WriteString(e.Body)
	}
	return b.String()
}

func (e *AuthError) Unwrap() error { return e.Err }

// GraphQLError is a single entry of a GraphQL "errors" list.
type GraphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// FetchError reports a failed event query.
type FetchError struct {
	StatusCode int
	Body       string
	Errors     []GraphQLError
	Err        error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString("fetch")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if len(e.Errors) > 0 {
		msgs := make([]string, 0, len(e.Errors))
		for _, ge := range e.Errors {
			msgs = append(msgs, ge.Message)
		}
		b.WriteString(": ")
		b.WriteString(strings.Join(msgs, "; "))
	}
	if e.Body != "" {
		b.WriteString(": ")
		b.WriteString(e.Body)
	}
	return b.String()
}

func (e *FetchError) Unwrap() error { return e.Err }
