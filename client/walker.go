package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/driftbase/driftbase/iterator"
	"github.com/driftbase/driftbase/query"
	"github.com/driftbase/driftbase/ref"
)

// List queries the child resources of the given container and returns an
// iterator over the matches. The first page is fetched before List returns,
// further pages are fetched on demand as the iterator is drained.
//
// Listings do not advance stored version tokens. The listing's own version
// token is available via the iterator.
func (c *Client) List(ctx context.Context, container ref.Ref, q *query.Query) (*iterator.Iterator, error) {
	if c.closed.IsSet() {
		return nil, ErrClosed
	}
	if err := container.Validate(); err != nil {
		return nil, err
	}
	path, err := container.ChildrenPath()
	if err != nil {
		return nil, err
	}

	var values url.Values
	if q != nil {
		checked, err := q.Check()
		if err != nil {
			return nil, err
		}
		values = checked.Values()
	}

	first, err := c.fetchPage(ctx, container, path, values)
	if err != nil {
		return nil, err
	}
	return iterator.New(first, func(ctx context.Context, cursor string) (*iterator.Page, error) {
		path, values, err := c.parseCursor(cursor)
		if err != nil {
			return nil, err
		}
		return c.fetchPage(ctx, container, path, values)
	}), nil
}

func (c *Client) fetchPage(ctx context.Context, container ref.Ref, path string, values url.Values) (*iterator.Page, error) {
	pagesTotal.Inc()
	resp, err := c.sendWire(ctx, "list", &wireOp{
		method: http.MethodGet,
		path:   path,
		query:  values,
	})
	if err != nil {
		return nil, err
	}
	if resp.Status < 200 || resp.Status >= 300 {
		_, err := c.classify(Operation{kind: opRead, ref: container}, "", resp.Status, resp.Header, resp.Body)
		return nil, err
	}

	records, err := c.profile.DecodeList(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode listing of %s: %w", container, err)
	}

	page := &iterator.Page{
		Records: records,
		Next:    resp.Header.Get(c.profile.NextPageHeader),
		Total:   -1,
		Token:   resp.Header.Get(c.profile.VersionHeader),
	}
	if total := resp.Header.Get(c.profile.TotalHeader); total != "" {
		if n, err := strconv.Atoi(total); err == nil {
			page.Total = n
		}
	}
	return page, nil
}

// parseCursor splits a next-page cursor, as handed out by the server, into a
// request path and query. The cursor's parameters replace the original query
// entirely.
func (c *Client) parseCursor(cursor string) (string, url.Values, error) {
	u, err := url.Parse(cursor)
	if err != nil {
		return "", nil, fmt.Errorf("invalid page cursor %q: %w", cursor, err)
	}
	path := u.Path
	if c.profile.PathPrefix != "" {
		path = strings.TrimPrefix(path, c.profile.PathPrefix)
	}
	return path, u.Query(), nil
}
