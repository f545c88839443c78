package client

import (
	"fmt"

	"github.com/driftbase/driftbase/protocol"
	"github.com/driftbase/driftbase/tokens"
	"github.com/driftbase/driftbase/transport"
)

// Options holds configuration for a Client. The zero value is not usable on
// its own: either ServerURL or Transport must be set.
type Options struct {
	// ServerURL is the base URL of the server, eg.
	// "https://records.example.com". Ignored when Transport is set.
	ServerURL string

	// Transport overrides the HTTP transport entirely. Mainly useful for
	// testing and custom wiring.
	Transport transport.Transport

	// Credentials are applied to every outgoing request.
	Credentials transport.Credentials

	// HTTP tunes the built-in HTTP transport. Ignored when Transport is
	// set.
	HTTP *transport.Options

	// Profile overrides the wire profile. Defaults to the standard
	// profile.
	Profile *protocol.Profile

	// ProfileFile loads the wire profile from a yaml file, overlaying the
	// standard profile. Ignored when Profile is set.
	ProfileFile string

	// TokenStore overrides the version token store. When set, the store
	// is not shut down with the client.
	TokenStore tokens.Store

	// TokenBackend names the token store backend to start when TokenStore
	// is not set. Defaults to "memory".
	TokenBackend string

	// TokenLocation is the storage location handed to the token store
	// backend. Unused by the memory backend.
	TokenLocation string

	// CacheSize enables the record read cache with the given capacity.
	// Zero disables caching.
	CacheSize int

	// VerifyProtocol makes New fetch the server descriptor and check the
	// protocol version against the profile's constraint before returning.
	VerifyProtocol bool
}

func (o *Options) resolveProfile() (*protocol.Profile, error) {
	switch {
	case o.Profile != nil:
		p := *o.Profile
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return &p, nil
	case o.ProfileFile != "":
		p, err := protocol.LoadProfile(o.ProfileFile)
		if err != nil {
			return nil, err
		}
		return &p, nil
	default:
		p := protocol.Default()
		return &p, nil
	}
}

func (o *Options) resolveTransport() (transport.Transport, error) {
	if o.Transport != nil {
		return o.Transport, nil
	}
	if o.ServerURL == "" {
		return nil, fmt.Errorf("incomplete client options: either ServerURL or Transport must be set")
	}

	httpOpts := o.HTTP
	if httpOpts == nil {
		httpOpts = &transport.Options{}
	}
	if httpOpts.Credentials == nil {
		httpOpts.Credentials = o.Credentials
	}
	return transport.NewHTTP(o.ServerURL, httpOpts)
}

func (o *Options) resolveStore() (tokens.Store, bool, error) {
	if o.TokenStore != nil {
		return o.TokenStore, false, nil
	}

	backend := o.TokenBackend
	if backend == "" {
		backend = "memory"
	}
	store, err := tokens.Start(backend, o.TokenLocation)
	if err != nil {
		return nil, false, err
	}
	return store, true, nil
}
