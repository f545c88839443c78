package drifttest

import (
	"strconv"
	"strings"
	"time"

	"github.com/driftbase/driftbase/record"
)

// node is one stored resource. Buckets and collections are nodes with
// children, records are leaf nodes.
type node struct {
	// data is the raw json document, including the injected id and
	// last_modified fields.
	data []byte

	// perms are the resource's permissions, nil when never set.
	perms record.Permissions

	// modified is the resource's own version timestamp in ms.
	modified int64

	// childMod is the version timestamp of the children listing, bumped on
	// every child change.
	childMod int64

	children map[string]*node
}

func newNode() *node {
	return &node{
		children: make(map[string]*node),
	}
}

// tick returns the next version timestamp. Timestamps are unique and strictly
// increasing across the whole server. Callers must hold the write lock.
func (s *Server) tick() int64 {
	now := time.Now().UnixMilli()
	if now <= s.clock {
		now = s.clock + 1
	}
	s.clock = now
	return now
}

// lookup walks the tree along the given path segments and returns the node,
// or nil if any segment is missing.
func (s *Server) lookup(segs []string) *node {
	cur := s.root
	for _, seg := range segs {
		cur = cur.children[seg]
		if cur == nil {
			return nil
		}
	}
	return cur
}

// locate resolves a resource path into its parent container, the resource ID
// and the resource node itself. The node is nil when the resource does not
// exist, the parent is nil when an intermediate container is missing.
func (s *Server) locate(segs []string) (parent *node, id string, n *node) {
	if len(segs) == 0 {
		return nil, "", s.root
	}
	parent = s.lookup(segs[:len(segs)-1])
	id = segs[len(segs)-1]
	if parent == nil {
		return nil, id, nil
	}
	return parent, id, parent.children[id]
}

// segments extracts the resource path from mux vars, in hierarchy order.
func segments(vars map[string]string) []string {
	segs := make([]string, 0, 3)
	for _, name := range []string{"bucket", "collection", "record"} {
		if v, ok := vars[name]; ok {
			segs = append(segs, v)
		}
	}
	return segs
}

// etag renders a version timestamp as a quoted decimal version token.
func etag(ts int64) string {
	return `"` + strconv.FormatInt(ts, 10) + `"`
}

// parseVersion parses a version token back into a timestamp. It accepts both
// quoted and bare decimals and returns false for anything else.
func parseVersion(token string) (int64, bool) {
	trimmed := strings.Trim(token, `"`)
	ts, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}
