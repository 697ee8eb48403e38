package vandebron

import "fmt"

// TransportError represents a non-2xx HTTP response at any step of the
// pipeline. It is never retried; the run aborts.
type TransportError struct {
	StatusCode int
	URL        string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// ParseError indicates an expected structure was absent from an HTML or
// JSON body, which usually means the portal changed its page or API shape.
type ParseError struct {
	What string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing response: %s", e.What)
}

// AuthError represents rejected credentials or a malformed token exchange.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return e.Message
}

// PreconditionError indicates the account does not match an assumption the
// tool depends on (e.g. exactly one shipping address).
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string {
	return e.Message
}
