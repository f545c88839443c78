// Package query provides the filter builder for list operations. Queries
// encode into request parameters, and can evaluate locally against record
// data, which test servers use to answer filtered listings.
package query

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/driftbase/driftbase/record"
)

// Reserved query parameters.
const (
	ParamLimit  = "_limit"
	ParamSort   = "_sort"
	ParamFields = "_fields"
	ParamSince  = "_since"
	ParamToken  = "_token"
)

// Example:
// q.New().
//   Where(q.Where("status", q.Equals, "published")).
//   Where(q.Where("views", q.Min, 100)).
//   SortBy("-last_modified").
//   Limit(25).
//   MustBeValid()

var sortExpr = regexp.MustCompile(`^-?[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// Query contains a compiled list query.
type Query struct {
	checked    bool
	conditions []Condition
	limit      int
	sort       []string
	fields     []string
	since      string
}

// New creates a new query.
func New() *Query {
	return &Query{}
}

// Where adds filtering.
func (q *Query) Where(conditions ...Condition) *Query {
	q.conditions = append(q.conditions, conditions...)
	return q
}

// Limit limits the number of results per page.
func (q *Query) Limit(limit int) *Query {
	q.limit = limit
	return q
}

// SortBy orders the results by the given fields. A leading "-" inverts the
// order, eg. "-last_modified".
func (q *Query) SortBy(fields ...string) *Query {
	q.sort = append(q.sort, fields...)
	return q
}

// Fields restricts the returned records to the given fields.
func (q *Query) Fields(fields ...string) *Query {
	q.fields = append(q.fields, fields...)
	return q
}

// Since restricts the results to resources changed after the state the given
// version token refers to. The token is passed on verbatim.
func (q *Query) Since(token string) *Query {
	q.since = token
	return q
}

// Check checks for errors in the query.
func (q *Query) Check() (*Query, error) {
	if q.checked {
		return q, nil
	}

	for _, c := range q.conditions {
		if err := c.check(); err != nil {
			return nil, err
		}
	}
	for _, field := range q.sort {
		if !sortExpr.MatchString(field) {
			return nil, fmt.Errorf("invalid sort field: %q", field)
		}
	}
	for _, field := range q.fields {
		if !keyExpr.MatchString(field) {
			return nil, fmt.Errorf("invalid field selector: %q", field)
		}
	}
	if q.limit < 0 {
		return nil, fmt.Errorf("invalid limit: %d", q.limit)
	}

	q.checked = true
	return q, nil
}

// MustBeValid checks for errors in the query and panics if there is one.
func (q *Query) MustBeValid() *Query {
	if _, err := q.Check(); err != nil {
		panic(err)
	}
	return q
}

// IsChecked returns whether the query was checked.
func (q *Query) IsChecked() bool {
	return q.checked
}

// Values encodes the query into request parameters.
func (q *Query) Values() url.Values {
	values := url.Values{}
	for _, c := range q.conditions {
		name, value := c.param()
		values.Add(name, value)
	}
	if q.limit > 0 {
		values.Set(ParamLimit, strconv.Itoa(q.limit))
	}
	if len(q.sort) > 0 {
		values.Set(ParamSort, strings.Join(q.sort, ","))
	}
	if len(q.fields) > 0 {
		values.Set(ParamFields, strings.Join(q.fields, ","))
	}
	if q.since != "" {
		values.Set(ParamSince, q.since)
	}
	return values
}

// Matches checks whether all conditions hold for the given record data.
func (q *Query) Matches(acc *record.Accessor) bool {
	for _, c := range q.conditions {
		if !c.Matches(acc) {
			return false
		}
	}
	return true
}

// Conditions returns the filter conditions.
func (q *Query) Conditions() []Condition {
	return q.conditions
}

// SortFields returns the sort fields in order.
func (q *Query) SortFields() []string {
	return q.sort
}

// FieldSelection returns the selected fields, nil meaning all.
func (q *Query) FieldSelection() []string {
	return q.fields
}

// PageLimit returns the per-page limit, zero meaning server default.
func (q *Query) PageLimit() int {
	return q.limit
}

// SinceToken returns the change horizon token, if set.
func (q *Query) SinceToken() string {
	return q.since
}

// Print returns the string representation of the query.
func (q *Query) Print() string {
	b := strings.Builder{}
	b.WriteString("query")
	for i, c := range q.conditions {
		if i == 0 {
			b.WriteString(" where ")
		} else {
			b.WriteString(" and ")
		}
		b.WriteString(c.string())
	}
	if len(q.sort) > 0 {
		b.WriteString(" sortby ")
		b.WriteString(strings.Join(q.sort, ","))
	}
	if q.limit > 0 {
		fmt.Fprintf(&b, " limit %d", q.limit)
	}
	if q.since != "" {
		fmt.Fprintf(&b, " since %s", q.since)
	}
	return b.String()
}
