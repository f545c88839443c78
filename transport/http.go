package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/driftbase/driftbase/info"
)

// Timeouts applied when Options leave them zero.
const (
	defaultRequestTimeout = 60 * time.Second
	defaultConnectTimeout = 5 * time.Second
	defaultTLSTimeout     = 5 * time.Second
)


// Options configure the HTTP transport.
type Options struct {
	// Timeout bounds a whole request including reading the response.
	Timeout time.Duration

	// ConnectTimeout bounds establishing the TCP connection.
	ConnectTimeout time.Duration

	// TLSTimeout bounds the TLS handshake.
	TLSTimeout time.Duration

	// UserAgent overrides the default user agent.
	UserAgent string

	// Credentials are applied to every request.
	Credentials Credentials

	// Client overrides the constructed http client entirely. The timeout
	// options are ignored then.
	Client *http.Client
}

// HTTP sends requests to a single server over http(s).
type HTTP struct {
	base        *url.URL
	client      *http.Client
	userAgent   string
	credentials Credentials
}

// NewHTTP creates a transport for the server at the given base URL.
func NewHTTP(serverURL string, opts *Options) (*HTTP, error) {
	if opts == nil {
		opts = &Options{}
	}

	base, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", serverURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", serverURL)
	}
	base.Path = strings.TrimSuffix(base.Path, "/")

	client := opts.Client
	if client == nil {
		client = newClient(opts)
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = info.UserAgent()
	}

	return &HTTP{
		base:        base,
		client:      client,
		userAgent:   userAgent,
		credentials: opts.Credentials,
	}, nil
}

func newClient(opts *Options) *http.Client {
	requestTimeout := opts.Timeout
	if requestTimeout == 0 {
		requestTimeout = defaultRequestTimeout
	}
	connectTimeout := opts.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = defaultConnectTimeout
	}
	tlsTimeout := opts.TLSTimeout
	if tlsTimeout == 0 {
		tlsTimeout = defaultTLSTimeout
	}

	dialer := &net.Dialer{
		Timeout: connectTimeout,
	}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: tlsTimeout,
		},
		Timeout: requestTimeout,
	}
}

// URL returns the server base URL.
func (t *HTTP) URL() string {
	return t.base.String()
}

// Send implements Transport.
func (t *HTTP) Send(ctx context.Context, r *Request) (*Response, error) {
	target := *t.base
	target.Path += r.Path
	if r.Query != nil {
		target.RawQuery = r.Query.Encode()
	}

	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target.String(), body)
	if err != nil {
		return nil, &Error{Op: r.Method, URL: target.String(), Err: err}
	}

	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "application/json")
	if len(r.Body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.credentials != nil {
		t.credentials.Apply(req.Header)
	}
	for name, values := range r.Header {
		req.Header[name] = values
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &Error{Op: r.Method, URL: target.String(), Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: r.Method, URL: target.String(), Err: err}
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   respBody,
	}, nil
}

// BasicAuth authenticates with a username and password.
type BasicAuth struct {
	User string
	Pass string
}

// Apply implements Credentials.
func (c *BasicAuth) Apply(h http.Header) {
	auth := base64.StdEncoding.EncodeToString([]byte(c.User + ":" + c.Pass))
	h.Set("Authorization", "Basic "+auth)
}

// TokenAuth authenticates with a bearer token.
type TokenAuth struct {
	Token string
}

// Apply implements Credentials.
func (c *TokenAuth) Apply(h http.Header) {
	h.Set("Authorization", "Bearer "+c.Token)
}
