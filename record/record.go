// Package record holds the value objects returned and accepted by client
// operations: records with their field data, permissions and the opaque
// version token assigned by the server.
package record

import (
	"fmt"

	"github.com/mitchellh/copystructure"
)

// Record is a single resource as seen by the client: the field data of a
// bucket, collection or record, its permission sets, and the version token of
// the server state it was read from. Records are plain values that hold no
// reference to any client or server state; mutating one has no effect until
// it is written back.
type Record struct {
	// ID is the resource identifier. It mirrors the "id" field of Data when
	// the record came from a server.
	ID string

	// Data holds the resource fields, including server-managed ones such as
	// "id" and "last_modified".
	Data map[string]interface{}

	// Permissions lists principals per permission name, eg. "read", "write".
	Permissions Permissions

	// Token is the version token the server assigned to the state this
	// record was loaded from. It is opaque and must not be interpreted. An
	// empty token means the record was never loaded from a server.
	Token string
}

// New returns a record carrying the given field data. The map is used as-is,
// not copied.
func New(data map[string]interface{}) *Record {
	if data == nil {
		data = make(map[string]interface{})
	}
	return &Record{Data: data}
}

// Copy returns a deep copy of the record. The copy shares no mutable state
// with the original.
func (r *Record) Copy() (*Record, error) {
	dup, err := copystructure.Copy(r.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to copy record data: %w", err)
	}
	data, _ := dup.(map[string]interface{})

	return &Record{
		ID:          r.ID,
		Data:        data,
		Permissions: r.Permissions.Clone(),
		Token:       r.Token,
	}, nil
}

// MustCopy is like Copy, but panics on copy failure. Data that round-trips
// through JSON never fails to copy.
func (r *Record) MustCopy() *Record {
	dup, err := r.Copy()
	if err != nil {
		panic(err)
	}
	return dup
}

// Grant adds principals to the given permission set.
func (r *Record) Grant(permission string, principals ...string) {
	if r.Permissions == nil {
		r.Permissions = make(Permissions)
	}
	r.Permissions.grant(permission, principals...)
}

// Revoke removes principals from the given permission set.
func (r *Record) Revoke(permission string, principals ...string) {
	r.Permissions.revoke(permission, principals...)
}

// Permissions maps a permission name, eg. "read" or "write", to the
// principals holding it.
type Permissions map[string][]string

// Has reports whether the principal is listed in the given permission set.
func (p Permissions) Has(permission, principal string) bool {
	for _, listed := range p[permission] {
		if listed == principal {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the permission sets. Cloning nil returns nil.
func (p Permissions) Clone() Permissions {
	if p == nil {
		return nil
	}
	dup := make(Permissions, len(p))
	for permission, principals := range p {
		dup[permission] = append([]string(nil), principals...)
	}
	return dup
}

func (p Permissions) grant(permission string, principals ...string) {
	for _, principal := range principals {
		if !p.Has(permission, principal) {
			p[permission] = append(p[permission], principal)
		}
	}
}

func (p Permissions) revoke(permission string, principals ...string) {
	listed, ok := p[permission]
	if !ok {
		return
	}
	kept := listed[:0]
	for _, principal := range listed {
		remove := false
		for _, revoked := range principals {
			if principal == revoked {
				remove = true
				break
			}
		}
		if !remove {
			kept = append(kept, principal)
		}
	}
	if len(kept) == 0 {
		delete(p, permission)
		return
	}
	p[permission] = kept
}
