// Package tokens defines the version token store: the client's memory of
// which server-side version it last saw per resource. Stores are pluggable,
// registered by backend name.
//
// Token absence is always safe: a missing token degrades conditional
// requests to unconditional ones or refetches, never to wrong conditions.
// Persistent backends therefore report backend failures as misses instead of
// erroring on every lookup.
package tokens

import (
	"github.com/driftbase/driftbase/ref"
)

// Store keeps version tokens per resource. Implementations must be safe for
// concurrent use and must not serialize operations on distinct resources
// behind a single global lock.
type Store interface {
	// Get returns the version token stored for r.
	Get(r ref.Ref) (token string, ok bool)

	// Set stores the version token for r, replacing any previous one.
	Set(r ref.Ref, token string)

	// Clear removes the token stored for r.
	Clear(r ref.Ref)

	// ClearTree removes the tokens of r and of every resource below it.
	// Clearing the tree of the root scope empties the store.
	ClearTree(r ref.Ref)

	// Snapshot returns a copy of all stored tokens keyed by resource path.
	Snapshot() map[string]string

	// Shutdown releases backend resources, flushing pending writes.
	Shutdown() error
}

// Entry is the value persistent backends serialize per resource.
type Entry struct {
	Token   string `json:"token"`
	Updated int64  `json:"updated"`
}

// Key derives the store key for r. Refs without a resource path, including
// the root scope, have no key.
func Key(r ref.Ref) (string, bool) {
	path, err := r.Path()
	if err != nil {
		return "", false
	}
	return path, true
}

// TreePrefix returns the key prefix shared by all resources below the given
// key.
func TreePrefix(key string) string {
	return key + "/"
}
