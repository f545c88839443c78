// Package iterator provides the demand-driven walker over paginated list
// results. Pages are fetched only when the walker runs out of buffered
// records, never ahead of consumption and never concurrently.
package iterator

import (
	"context"

	"github.com/driftbase/driftbase/record"
)

// State describes the walker position.
type State uint8

// Walker states.
const (
	// Idle means no record has been consumed yet.
	Idle State = iota
	// Active means the walk is in progress.
	Active
	// Exhausted means all pages were consumed. An exhausted walker never
	// fetches again.
	Exhausted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Exhausted:
		return "exhausted"
	default:
		return "invalid"
	}
}

// Page is one fetched slice of a listing.
type Page struct {
	// Records holds the page's records in listing order.
	Records []*record.Record

	// Next is the opaque continuation cursor, empty on the last page.
	Next string

	// Total is the number of records matching the listing across all pages,
	// or -1 when the server did not report it.
	Total int

	// Token is the version token of the listed state.
	Token string
}

// A FetchFunc fetches the page the opaque cursor points at.
type FetchFunc func(ctx context.Context, cursor string) (*Page, error)

// Iterator walks a paginated listing. It is not safe for concurrent use.
type Iterator struct {
	fetch FetchFunc

	buf     []*record.Record
	pos     int
	current *record.Record

	cursor  string
	total   int
	token   string
	pages   int
	started bool
	err     error
}

// New creates a walker over a listing, seeded with its first page.
func New(first *Page, fetch FetchFunc) *Iterator {
	return &Iterator{
		fetch:  fetch,
		buf:    first.Records,
		cursor: first.Next,
		total:  first.Total,
		token:  first.Token,
		pages:  1,
	}
}

// Next advances to the next record, fetching the next page when the buffered
// one is consumed. It returns false when the listing is exhausted or a fetch
// failed; Err tells the two apart. After a fetch failure the cursor is kept,
// so calling Next again retries the failed page.
func (it *Iterator) Next(ctx context.Context) bool {
	it.started = true

	if it.pos >= len(it.buf) {
		if it.cursor == "" {
			it.current = nil
			return false
		}

		page, err := it.fetch(ctx, it.cursor)
		if err != nil {
			it.err = err
			it.current = nil
			return false
		}
		it.err = nil
		it.buf = page.Records
		it.pos = 0
		it.cursor = page.Next
		it.pages++
		if page.Total >= 0 {
			it.total = page.Total
		}

		if len(it.buf) == 0 {
			// Tolerate empty continuation pages.
			return it.Next(ctx)
		}
	}

	it.current = it.buf[it.pos]
	it.pos++
	return true
}

// Record returns the record the walker currently points at, nil before the
// first Next and after exhaustion.
func (it *Iterator) Record() *record.Record {
	return it.current
}

// Err returns the error of the last failed page fetch, nil after success or
// exhaustion.
func (it *Iterator) Err() error {
	return it.err
}

// State returns the walker position.
func (it *Iterator) State() State {
	switch {
	case !it.started:
		return Idle
	case it.pos >= len(it.buf) && it.cursor == "" && it.err == nil:
		return Exhausted
	default:
		return Active
	}
}

// HasCursor reports whether a continuation cursor is pending.
func (it *Iterator) HasCursor() bool {
	return it.cursor != ""
}

// Total returns the number of records the listing matches across all pages,
// or -1 when unknown.
func (it *Iterator) Total() int {
	return it.total
}

// Token returns the version token of the listed state.
func (it *Iterator) Token() string {
	return it.token
}

// Pages returns the number of pages fetched so far, including the seed page.
func (it *Iterator) Pages() int {
	return it.pages
}

// Collect drains the walker and returns all remaining records.
func (it *Iterator) Collect(ctx context.Context) ([]*record.Record, error) {
	var all []*record.Record
	for it.Next(ctx) {
		all = append(all, it.Record())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return all, nil
}
