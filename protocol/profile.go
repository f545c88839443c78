// Package protocol defines the wire conventions shared by the client and by
// test servers: the protocol profile with its header names and status codes,
// body envelopes, batch frames and the server hello payload.
package protocol

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ghodss/yaml"
)

// NoneMatchAny is the wildcard conditional value that matches any existing
// version, used to make creates fail on already existing resources.
const NoneMatchAny = "*"

// ErrInvalidProfile is returned (wrapped) for incomplete protocol profiles.
var ErrInvalidProfile = errors.New("invalid protocol profile")

// Profile describes the concrete wire dialect of a server: which headers
// carry version tokens and pagination cursors, which status codes signal
// conflicts, and how body envelopes are keyed. Deployments that diverge from
// the default dialect provide their own profile, typically from a yaml file.
type Profile struct {
	// Name identifies the profile in logs and errors.
	Name string `json:"name"`

	// PathPrefix is prepended to all resource paths, eg. "/v1".
	PathPrefix string `json:"path_prefix"`

	// Header names.
	VersionHeader   string `json:"version_header"`
	MatchHeader     string `json:"match_header"`
	NoneMatchHeader string `json:"none_match_header"`
	NextPageHeader  string `json:"next_page_header"`
	TotalHeader     string `json:"total_header"`

	// Body envelope keys.
	DataKey        string `json:"data_key"`
	PermissionsKey string `json:"permissions_key"`

	// Non-resource endpoints, relative to PathPrefix.
	BatchPath string `json:"batch_path"`
	HelloPath string `json:"hello_path"`

	// Status codes.
	StatusNotModified int `json:"status_not_modified"`
	StatusConflict    int `json:"status_conflict"`
	StatusMissing     int `json:"status_missing"`
	StatusInvalid     int `json:"status_invalid"`

	// ProtocolConstraint is the version range of the storage protocol this
	// client speaks, checked against the server hello.
	ProtocolConstraint string `json:"protocol_constraint"`
}

// Default returns the canonical drift protocol profile.
func Default() Profile {
	return Profile{
		Name:               "drift",
		PathPrefix:         "/v1",
		VersionHeader:      "ETag",
		MatchHeader:        "If-Match",
		NoneMatchHeader:    "If-None-Match",
		NextPageHeader:     "Next-Page",
		TotalHeader:        "Total-Records",
		DataKey:            "data",
		PermissionsKey:     "permissions",
		BatchPath:          "/batch",
		HelloPath:          "/",
		StatusNotModified:  304,
		StatusConflict:     412,
		StatusMissing:      404,
		StatusInvalid:      400,
		ProtocolConstraint: ">= 1.0, < 2.0",
	}
}

// LoadProfile reads a profile from a yaml file. Keys absent from the file
// keep their default value.
func LoadProfile(path string) (Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile: %w", err)
	}

	profile := Default()
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	if err := profile.Validate(); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// Validate checks that the profile is complete.
func (p Profile) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"name", p.Name},
		{"version_header", p.VersionHeader},
		{"match_header", p.MatchHeader},
		{"none_match_header", p.NoneMatchHeader},
		{"next_page_header", p.NextPageHeader},
		{"total_header", p.TotalHeader},
		{"data_key", p.DataKey},
		{"permissions_key", p.PermissionsKey},
		{"batch_path", p.BatchPath},
		{"hello_path", p.HelloPath},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s must be set", ErrInvalidProfile, r.field)
		}
	}

	for _, s := range []struct {
		field string
		value int
	}{
		{"status_not_modified", p.StatusNotModified},
		{"status_conflict", p.StatusConflict},
		{"status_missing", p.StatusMissing},
		{"status_invalid", p.StatusInvalid},
	} {
		if s.value < 100 || s.value > 599 {
			return fmt.Errorf("%w: %s must be a valid status code", ErrInvalidProfile, s.field)
		}
	}

	if p.PathPrefix != "" && !strings.HasPrefix(p.PathPrefix, "/") {
		return fmt.Errorf("%w: path_prefix must start with /", ErrInvalidProfile)
	}
	return nil
}
