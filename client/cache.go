package client

import (
	"context"
	"strings"

	"github.com/driftbase/driftbase/log"
	"github.com/driftbase/driftbase/record"
	"github.com/driftbase/driftbase/ref"
	"github.com/driftbase/driftbase/tokens"
)

// Read fetches the resource's current state. With the read cache enabled, a
// cached state is revalidated with a version condition and served from the
// cache when the server confirms it is current.
func (c *Client) Read(ctx context.Context, r ref.Ref) (*record.Record, error) {
	op := ReadOp(r)
	if c.cache == nil {
		return c.do(ctx, op)
	}
	if c.closed.IsSet() {
		return nil, ErrClosed
	}

	cached := c.cacheGet(op.ref)
	if cached == nil || cached.Token == "" {
		cacheMisses.Inc()
		return c.do(ctx, op)
	}

	w, err := c.buildOp(op)
	if err != nil {
		return nil, err
	}
	w.headers[c.profile.NoneMatchHeader] = cached.Token

	resp, err := c.sendWire(ctx, op.Kind(), w)
	if err != nil {
		return nil, err
	}
	if resp.Status == c.profile.StatusNotModified {
		cacheHits.Inc()
		return cached, nil
	}

	rec, err := c.classify(op, cached.Token, resp.Status, resp.Header, resp.Body)
	if err != nil {
		return nil, err
	}
	cacheMisses.Inc()
	c.applySuccess(op, rec)
	return rec, nil
}

// cacheGet returns a copy of the cached state of the resource, or nil.
func (c *Client) cacheGet(r ref.Ref) *record.Record {
	if c.cache == nil {
		return nil
	}
	key, ok := tokens.Key(r)
	if !ok {
		return nil
	}
	v, err := c.cache.Get(key)
	if err != nil {
		return nil
	}
	rec, ok := v.(*record.Record)
	if !ok {
		return nil
	}
	copied, err := rec.Copy()
	if err != nil {
		log.Warningf("client: failed to copy cached record %s: %s", r, err)
		return nil
	}
	return copied
}

// cacheSet stores a copy of the record as the resource's cached state.
func (c *Client) cacheSet(r ref.Ref, rec *record.Record) {
	if c.cache == nil || rec == nil {
		return
	}
	key, ok := tokens.Key(r)
	if !ok {
		return
	}
	copied, err := rec.Copy()
	if err != nil {
		log.Warningf("client: failed to copy record %s for caching: %s", r, err)
		return
	}
	if err := c.cache.Set(key, copied); err != nil {
		log.Warningf("client: failed to cache record %s: %s", r, err)
	}
}

// cacheRemoveTree evicts the resource and everything below it.
func (c *Client) cacheRemoveTree(r ref.Ref) {
	if c.cache == nil {
		return
	}
	key, ok := tokens.Key(r)
	if !ok {
		return
	}
	prefix := tokens.TreePrefix(key)
	for _, k := range c.cache.Keys(false) {
		ks, ok := k.(string)
		if !ok {
			continue
		}
		if ks == key || strings.HasPrefix(ks, prefix) {
			c.cache.Remove(ks)
		}
	}
}
