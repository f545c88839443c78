// Package transport moves serialized requests to a storage server and
// returns its responses. It knows nothing about resources, envelopes or
// version tokens; that is the client's business.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// ErrFailed is matched by all transport-level errors, ie. failures to reach
// the server or to read its response. Responses with error status codes are
// not transport errors.
var ErrFailed = errors.New("transport failure")

// Request is a protocol request addressed by server-relative path.
type Request struct {
	Method string
	// Path is the server-relative path, including any protocol path prefix.
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Response is a fully read protocol response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// A Transport sends requests to one server.
type Transport interface {
	// Send performs the request and reads the full response. The returned
	// error is non-nil only for transport failures; protocol-level errors
	// travel in the response status.
	Send(ctx context.Context, r *Request) (*Response, error)
}

// Error wraps a transport failure with its request context.
type Error struct {
	Op  string
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport failure: %s %s: %s", e.Op, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches Error against ErrFailed.
func (e *Error) Is(target error) bool {
	return target == ErrFailed
}

// Credentials add authentication to outgoing requests.
type Credentials interface {
	// Apply sets the authentication headers on h.
	Apply(h http.Header)
}
