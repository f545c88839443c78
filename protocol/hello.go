package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	version "github.com/hashicorp/go-version"
)

// ErrIncompatible is returned (wrapped) when a server speaks a protocol
// version outside the profile's supported range.
var ErrIncompatible = errors.New("incompatible server protocol")

// ServerInfo is the hello payload served at the root endpoint.
type ServerInfo struct {
	ProjectName     string                     `json:"project_name"`
	ProjectVersion  string                     `json:"project_version"`
	ProtocolVersion string                     `json:"protocol_version"`
	Capabilities    map[string]json.RawMessage `json:"capabilities,omitempty"`
	Settings        ServerSettings             `json:"settings"`
}

// ServerSettings advertises server-side limits.
type ServerSettings struct {
	// BatchMaxOps is the maximum number of sub-requests per batch envelope.
	// Zero means the server did not advertise a limit.
	BatchMaxOps int `json:"batch_max_ops,omitempty"`

	// Readonly is set when the server rejects all writes.
	Readonly bool `json:"readonly,omitempty"`
}

// HasCapability reports whether the server advertises the named capability.
func (si *ServerInfo) HasCapability(name string) bool {
	_, ok := si.Capabilities[name]
	return ok
}

// CheckCompatibility verifies the server's protocol version against the
// profile's supported range. Servers not reporting a version are rejected.
func (p Profile) CheckCompatibility(info *ServerInfo) error {
	if p.ProtocolConstraint == "" {
		return nil
	}
	if info.ProtocolVersion == "" {
		return fmt.Errorf("%w: server reports no protocol version", ErrIncompatible)
	}

	v, err := version.NewVersion(info.ProtocolVersion)
	if err != nil {
		return fmt.Errorf("%w: cannot parse server protocol version %q: %s", ErrIncompatible, info.ProtocolVersion, err)
	}
	constraint, err := version.NewConstraint(p.ProtocolConstraint)
	if err != nil {
		return fmt.Errorf("invalid protocol constraint %q: %w", p.ProtocolConstraint, err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("%w: server speaks %s, supported range is %s", ErrIncompatible, info.ProtocolVersion, p.ProtocolConstraint)
	}
	return nil
}
