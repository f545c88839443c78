package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopy(t *testing.T) {
	t.Parallel()

	original := New(map[string]interface{}{
		"id":    "a1",
		"title": "hello",
		"tags":  []interface{}{"x", "y"},
		"meta":  map[string]interface{}{"views": float64(7)},
	})
	original.ID = "a1"
	original.Token = `"1700000000001"`
	original.Grant("read", "system.Everyone")

	dup, err := original.Copy()
	require.NoError(t, err)
	assert.Equal(t, original, dup)

	// Mutations of the copy must not reach the original.
	dup.Data["title"] = "changed"
	dup.Data["meta"].(map[string]interface{})["views"] = float64(8)
	dup.Grant("write", "account:alice")

	assert.Equal(t, "hello", original.Data["title"])
	assert.Equal(t, float64(7), original.Data["meta"].(map[string]interface{})["views"])
	assert.False(t, original.Permissions.Has("write", "account:alice"))
}

func TestPermissions(t *testing.T) {
	t.Parallel()

	r := New(nil)
	r.Grant("read", "system.Everyone", "account:alice")
	r.Grant("read", "account:alice") // duplicate, must not double up
	r.Grant("write", "account:alice")

	assert.Len(t, r.Permissions["read"], 2)
	assert.True(t, r.Permissions.Has("read", "system.Everyone"))
	assert.True(t, r.Permissions.Has("write", "account:alice"))
	assert.False(t, r.Permissions.Has("write", "account:bob"))

	r.Revoke("read", "system.Everyone")
	assert.False(t, r.Permissions.Has("read", "system.Everyone"))
	assert.True(t, r.Permissions.Has("read", "account:alice"))

	r.Revoke("write", "account:alice")
	_, stillThere := r.Permissions["write"]
	assert.False(t, stillThere, "empty permission sets should be dropped")

	// Revoking on empty permissions must not panic.
	empty := New(nil)
	empty.Revoke("read", "account:alice")
}

func TestPermissionsClone(t *testing.T) {
	t.Parallel()

	var nilPerms Permissions
	assert.Nil(t, nilPerms.Clone())

	p := Permissions{"read": {"a", "b"}}
	dup := p.Clone()
	dup["read"][0] = "changed"
	assert.Equal(t, "a", p["read"][0])
}
