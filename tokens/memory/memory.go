// Package memory provides the default in-memory token store. Tokens are kept
// in radix trees sharded by bucket, so operations on resources of different
// buckets do not contend on a shared lock and whole subtrees can be evicted
// by prefix.
package memory

import (
	"hash/fnv"
	"strings"
	"sync"

	radix "github.com/armon/go-radix"

	"github.com/driftbase/driftbase/ref"
	"github.com/driftbase/driftbase/tokens"
)

const shardCount = 16

// Memory is an in-memory token store.
type Memory struct {
	shards [shardCount]*shard
}

type shard struct {
	sync.RWMutex
	tree *radix.Tree
}

func init() {
	_ = tokens.Register("memory", NewMemory)
}

// NewMemory creates an in-memory token store. The location is ignored.
func NewMemory(_ string) (tokens.Store, error) {
	m := &Memory{}
	for i := range m.shards {
		m.shards[i] = &shard{tree: radix.New()}
	}
	return m, nil
}

// shardFor picks the shard by the bucket segment of the key, so a resource
// and all of its descendants always share a shard.
func (m *Memory) shardFor(key string) *shard {
	bucket := strings.TrimPrefix(key, "/buckets/")
	if i := strings.IndexByte(bucket, '/'); i >= 0 {
		bucket = bucket[:i]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(bucket))
	return m.shards[h.Sum32()%shardCount]
}

// Get returns the version token stored for r.
func (m *Memory) Get(r ref.Ref) (string, bool) {
	key, ok := tokens.Key(r)
	if !ok {
		return "", false
	}

	s := m.shardFor(key)
	s.RLock()
	defer s.RUnlock()

	value, ok := s.tree.Get(key)
	if !ok {
		return "", false
	}
	return value.(string), true
}

// Set stores the version token for r.
func (m *Memory) Set(r ref.Ref, token string) {
	key, ok := tokens.Key(r)
	if !ok {
		return
	}

	s := m.shardFor(key)
	s.Lock()
	defer s.Unlock()

	s.tree.Insert(key, token)
}

// Clear removes the token stored for r.
func (m *Memory) Clear(r ref.Ref) {
	key, ok := tokens.Key(r)
	if !ok {
		return
	}

	s := m.shardFor(key)
	s.Lock()
	defer s.Unlock()

	s.tree.Delete(key)
}

// ClearTree removes the tokens of r and of every resource below it.
func (m *Memory) ClearTree(r ref.Ref) {
	if r.IsRoot() {
		for _, s := range m.shards {
			s.Lock()
			s.tree = radix.New()
			s.Unlock()
		}
		return
	}

	key, ok := tokens.Key(r)
	if !ok {
		return
	}

	s := m.shardFor(key)
	s.Lock()
	defer s.Unlock()

	s.tree.Delete(key)
	s.tree.DeletePrefix(tokens.TreePrefix(key))
}

// Snapshot returns a copy of all stored tokens keyed by resource path.
func (m *Memory) Snapshot() map[string]string {
	all := make(map[string]string)
	for _, s := range m.shards {
		s.RLock()
		s.tree.Walk(func(key string, value interface{}) bool {
			all[key] = value.(string)
			return false
		})
		s.RUnlock()
	}
	return all
}

// Shutdown is a no-op for the in-memory store.
func (m *Memory) Shutdown() error {
	return nil
}
