package client

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftbase/driftbase/drifttest"
	"github.com/driftbase/driftbase/ref"
	"github.com/driftbase/driftbase/transport"
)

func TestCachedRead(t *testing.T) {
	srv := drifttest.New()
	defer srv.Close()
	c := newTestClient(t, srv, &Options{CacheSize: 32})
	other := newTestClient(t, srv, nil)
	ctx := context.Background()

	col := seedCollection(t, c, "blog", "articles")
	seedRecord(t, c, col, "a1", map[string]interface{}{"title": "one"})
	aref := ref.RecordRef("blog", "articles", "a1")

	first, err := c.Read(ctx, aref)
	require.NoError(t, err)

	// The second read revalidates the cached state.
	second, err := c.Read(ctx, aref)
	require.NoError(t, err)
	assert.Equal(t, first.Token, second.Token)
	assert.Equal(t, "one", second.Data["title"])

	// Mutating a returned record must not poison the cache.
	second.Data["title"] = "mutated"
	third, err := c.Read(ctx, aref)
	require.NoError(t, err)
	assert.Equal(t, "one", third.Data["title"])

	// After an external change, revalidation returns the fresh state.
	_, err = other.Update(ctx, aref, map[string]interface{}{"title": "fresh"}, "")
	require.NoError(t, err)

	fresh, err := c.Read(ctx, aref)
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, fresh.Token)
	assert.Equal(t, "fresh", fresh.Data["title"])
}

func TestCacheEvictionOnDelete(t *testing.T) {
	srv := drifttest.New()
	defer srv.Close()
	c := newTestClient(t, srv, &Options{CacheSize: 32})
	ctx := context.Background()

	col := seedCollection(t, c, "blog", "articles")
	seedRecord(t, c, col, "a1", map[string]interface{}{"title": "one"})
	aref := ref.RecordRef("blog", "articles", "a1")

	_, err := c.Read(ctx, aref)
	require.NoError(t, err)

	require.NoError(t, c.Delete(ctx, aref, ""))
	_, err = c.Read(ctx, aref)
	require.ErrorIs(t, err, ErrNotFound, "a deleted record must not be served from cache")
}

func TestCacheEvictionOnContainerDelete(t *testing.T) {
	srv := drifttest.New()
	defer srv.Close()
	c := newTestClient(t, srv, &Options{CacheSize: 32})
	ctx := context.Background()

	col := seedCollection(t, c, "blog", "articles")
	seedRecord(t, c, col, "a1", map[string]interface{}{"title": "one"})
	aref := ref.RecordRef("blog", "articles", "a1")

	_, err := c.Read(ctx, aref)
	require.NoError(t, err)

	require.NoError(t, c.Delete(ctx, col, ""))
	_, err = c.Read(ctx, aref)
	require.ErrorIs(t, err, ErrNotFound, "deleting the container must evict cached children")
}

// staticTransport answers every request with the same canned response.
type staticTransport struct {
	resp *transport.Response
}

func (s *staticTransport) Send(ctx context.Context, r *transport.Request) (*transport.Response, error) {
	return s.resp, nil
}

func TestUnexpectedNotModified(t *testing.T) {
	// A not-modified status only answers a revalidating cached read. On a
	// plain read it is a server error, not a silent empty result.
	c, err := New(&Options{Transport: &staticTransport{resp: &transport.Response{
		Status: 304,
		Header: http.Header{"Etag": {`"7"`}},
	}}})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, err = c.Read(context.Background(), ref.RecordRef("blog", "articles", "a1"))
	require.ErrorIs(t, err, ErrServer)
}

func TestUncachedClient(t *testing.T) {
	srv := drifttest.New()
	defer srv.Close()
	c := newTestClient(t, srv, nil)
	ctx := context.Background()

	col := seedCollection(t, c, "blog", "articles")
	seedRecord(t, c, col, "a1", map[string]interface{}{"title": "one"})
	aref := ref.RecordRef("blog", "articles", "a1")

	// Without a cache every read is a plain fetch.
	for i := 0; i < 2; i++ {
		rec, err := c.Read(ctx, aref)
		require.NoError(t, err)
		assert.Equal(t, "one", rec.Data["title"])
	}
}
