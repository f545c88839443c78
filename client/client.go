package client

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"github.com/tevino/abool"
	"golang.org/x/sync/singleflight"

	"github.com/driftbase/driftbase/log"
	"github.com/driftbase/driftbase/protocol"
	"github.com/driftbase/driftbase/record"
	"github.com/driftbase/driftbase/ref"
	"github.com/driftbase/driftbase/tokens"
	_ "github.com/driftbase/driftbase/tokens/memory" // default token store backend
	"github.com/driftbase/driftbase/transport"
)

// Client is a client for record storage servers. It tracks version tokens of
// the resources it touches and applies them as conditions on writes, so
// concurrent modifications surface as conflicts instead of silently winning.
//
// A Client is safe for concurrent use.
type Client struct {
	profile   *protocol.Profile
	transport transport.Transport
	store     tokens.Store
	ownStore  bool
	cache     gcache.Cache
	closed    *abool.AtomicBool

	infoFlight singleflight.Group
	infoLock   sync.Mutex
	info       *protocol.ServerInfo
}

// New creates a client with the given options.
func New(opts *Options) (*Client, error) {
	if opts == nil {
		opts = &Options{}
	}

	profile, err := opts.resolveProfile()
	if err != nil {
		return nil, err
	}
	t, err := opts.resolveTransport()
	if err != nil {
		return nil, err
	}
	store, ownStore, err := opts.resolveStore()
	if err != nil {
		return nil, err
	}

	c := &Client{
		profile:   profile,
		transport: t,
		store:     store,
		ownStore:  ownStore,
		closed:    abool.NewBool(false),
	}
	if opts.CacheSize > 0 {
		c.cache = gcache.New(opts.CacheSize).ARC().Build()
	}

	if opts.VerifyProtocol {
		if _, err := c.VerifyConnection(context.Background()); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}

// Close releases the client. A token store started by the client is shut
// down, a store supplied via Options is left running.
func (c *Client) Close() error {
	if !c.closed.SetToIf(false, true) {
		return nil
	}
	if c.ownStore {
		if err := c.store.Shutdown(); err != nil {
			log.Warningf("client: failed to shut down token store: %s", err)
			return err
		}
	}
	return nil
}

// Tokens returns the client's version token store.
func (c *Client) Tokens() tokens.Store {
	return c.store
}

// Profile returns a copy of the client's wire profile.
func (c *Client) Profile() protocol.Profile {
	return *c.profile
}

// Create stores rec as a new record within the given container, which must
// name a bucket or collection scope. The create fails with a conflict if the
// record already exists. The returned record carries the assigned ID and the
// new version token.
func (c *Client) Create(ctx context.Context, container ref.Ref, rec *record.Record) (*record.Record, error) {
	return c.do(ctx, CreateOp(container, rec))
}

// Update merges the patch fields into the resource's data, leaving other
// fields as they are. An empty expected token falls back to the stored token
// for the resource; clear the store to force an unconditional update.
func (c *Client) Update(ctx context.Context, r ref.Ref, patch map[string]interface{}, expected string) (*record.Record, error) {
	return c.do(ctx, UpdateOp(r, patch, expected))
}

// Replace overwrites the resource's data with rec. An empty expected token
// falls back to the stored token for the resource.
func (c *Client) Replace(ctx context.Context, r ref.Ref, rec *record.Record, expected string) (*record.Record, error) {
	return c.do(ctx, ReplaceOp(r, rec, expected))
}

// Delete removes the resource. Deleting a container removes everything below
// it. An empty expected token falls back to the stored token for the
// resource. Stored tokens for the resource and its subtree are evicted on
// success.
func (c *Client) Delete(ctx context.Context, r ref.Ref, expected string) error {
	_, err := c.do(ctx, DeleteOp(r, expected))
	return err
}

// DeleteAll removes all child resources of the given container, keeping the
// container itself. It returns the number of resources the server reported
// deleted.
//
// The expected token guards against concurrent child changes and is matched
// against the listing's version token, as reported by List via the iterator,
// not against the container's own token. An empty token deletes
// unconditionally. On success the children's stored tokens are evicted; the
// container's own token stays valid and is kept.
func (c *Client) DeleteAll(ctx context.Context, container ref.Ref, expected string) (int, error) {
	if c.closed.IsSet() {
		return 0, ErrClosed
	}
	if err := container.Validate(); err != nil {
		return 0, err
	}
	path, err := container.ChildrenPath()
	if err != nil {
		return 0, err
	}

	op := Operation{kind: opDelete, ref: container, expected: expected}
	w := &wireOp{
		method:  http.MethodDelete,
		path:    path,
		headers: make(map[string]string),
	}
	// Listing tokens live in a different space than the container's own
	// token, so the stored-token fallback of addCondition does not apply
	// here: only an explicitly supplied token becomes a condition.
	if expected != "" {
		w.condition = expected
		w.headers[c.profile.MatchHeader] = expected
	}

	resp, err := c.sendWire(ctx, "delete_all", w)
	if err != nil {
		return 0, err
	}
	if resp.Status < 200 || resp.Status >= 300 {
		_, err := c.classify(op, w.condition, resp.Status, resp.Header, resp.Body)
		return 0, err
	}

	records, err := c.profile.DecodeList(resp.Body)
	if err != nil {
		log.Debugf("client: failed to decode delete listing for %s: %s", op.ref, err)
	}
	own, hasOwn := c.store.Get(container)
	c.store.ClearTree(container)
	if hasOwn {
		c.store.Set(container, own)
	}
	c.cacheRemoveTree(container)
	return len(records), nil
}

// do runs a single operation: resolve it against the token store, send it,
// classify the response and apply token updates. Tokens only ever advance on
// success, a failed operation leaves the store untouched.
func (c *Client) do(ctx context.Context, op Operation) (*record.Record, error) {
	if c.closed.IsSet() {
		return nil, ErrClosed
	}

	w, err := c.buildOp(op)
	if err != nil {
		return nil, err
	}
	resp, err := c.sendWire(ctx, op.Kind(), w)
	if err != nil {
		return nil, err
	}
	rec, err := c.classify(op, w.condition, resp.Status, resp.Header, resp.Body)
	if err != nil {
		return nil, err
	}
	c.applySuccess(op, rec)
	return rec, nil
}

func (c *Client) sendWire(ctx context.Context, label string, w *wireOp) (*transport.Response, error) {
	reqCounter(label).Inc()
	start := time.Now()

	resp, err := c.transport.Send(ctx, &transport.Request{
		Method: w.method,
		Path:   c.profile.PathPrefix + w.path,
		Query:  w.query,
		Header: headerFrom(w.headers),
		Body:   w.body,
	})
	requestDuration.UpdateDuration(start)
	if err != nil {
		transportFailures.Inc()
		return nil, err
	}
	return resp, nil
}

// applySuccess applies the side effects of a successful operation: version
// tokens advance and the read cache is refreshed or evicted.
func (c *Client) applySuccess(op Operation, rec *record.Record) {
	if op.kind == opDelete {
		c.store.ClearTree(op.ref)
		c.cacheRemoveTree(op.ref)
		return
	}

	if rec != nil && rec.Token != "" {
		c.store.Set(op.ref, rec.Token)
	}
	c.cacheSet(op.ref, rec)
}

func headerFrom(headers map[string]string) http.Header {
	if len(headers) == 0 {
		return nil
	}
	h := make(http.Header, len(headers))
	for name, value := range headers {
		h.Set(name, value)
	}
	return h
}
