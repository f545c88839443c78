package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/driftbase/driftbase/record"
)

// Operator compares a record field against a filter value.
type Operator uint8

// Filter operators.
const (
	Equals Operator = iota + 1
	Not
	Min
	Max
	Like
	Has
)

var paramPrefixes = map[Operator]string{
	Not:  "not_",
	Min:  "min_",
	Max:  "max_",
	Like: "like_",
	Has:  "has_",
}

func (op Operator) String() string {
	switch op {
	case Equals:
		return "="
	case Not:
		return "!="
	case Min:
		return ">="
	case Max:
		return "<="
	case Like:
		return "like"
	case Has:
		return "has"
	default:
		return "?"
	}
}

var keyExpr = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// Condition is a single field filter. Conditions combine conjunctively.
type Condition struct {
	key   string
	op    Operator
	value interface{}
}

// Where creates a filter condition on a record field. Nested fields are
// addressed with dotted keys, eg. "author.name". Values must be strings,
// numbers or bools.
func Where(key string, op Operator, value interface{}) Condition {
	return Condition{
		key:   key,
		op:    op,
		value: value,
	}
}

func (c Condition) check() error {
	if !keyExpr.MatchString(c.key) {
		return fmt.Errorf("invalid filter key: %q", c.key)
	}
	if _, ok := paramPrefixes[c.op]; !ok && c.op != Equals {
		return fmt.Errorf("invalid filter operator on %s", c.key)
	}
	switch c.value.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return nil
	default:
		return fmt.Errorf("invalid filter value for %s: %T", c.key, c.value)
	}
}

// param returns the query parameter encoding of the condition.
func (c Condition) param() (name, value string) {
	return paramPrefixes[c.op] + c.key, formatValue(c.value)
}

func (c Condition) string() string {
	return fmt.Sprintf("%s %s %s", c.key, c.op, formatValue(c.value))
}

// Matches evaluates the condition against record data.
func (c Condition) Matches(acc *record.Accessor) bool {
	switch c.op {
	case Equals:
		return matchesEqual(acc, c.key, c.value)
	case Not:
		return !matchesEqual(acc, c.key, c.value)
	case Min:
		cmp, ok := compare(acc, c.key, c.value)
		return ok && cmp >= 0
	case Max:
		cmp, ok := compare(acc, c.key, c.value)
		return ok && cmp <= 0
	case Like:
		field, ok := acc.GetString(c.key)
		if !ok {
			return false
		}
		return strings.Contains(strings.ToLower(field), strings.ToLower(formatValue(c.value)))
	case Has:
		want := true
		if b, ok := c.value.(bool); ok {
			want = b
		}
		return acc.Exists(c.key) == want
	default:
		return false
	}
}

func matchesEqual(acc *record.Accessor, key string, value interface{}) bool {
	field, ok := acc.Get(key)
	if !ok {
		return false
	}

	switch want := value.(type) {
	case string:
		s, ok := field.(string)
		return ok && s == want
	case bool:
		b, ok := field.(bool)
		return ok && b == want
	default:
		fieldNum, ok := field.(float64)
		if !ok {
			return false
		}
		wantNum, ok := toFloat(value)
		return ok && fieldNum == wantNum
	}
}

// compare orders the field value against the filter value: numerically when
// both sides are numbers, lexicographically for strings.
func compare(acc *record.Accessor, key string, value interface{}) (int, bool) {
	if wantNum, ok := toFloat(value); ok {
		fieldNum, ok := acc.GetFloat(key)
		if !ok {
			return 0, false
		}
		switch {
		case fieldNum < wantNum:
			return -1, true
		case fieldNum > wantNum:
			return 1, true
		default:
			return 0, true
		}
	}

	want, ok := value.(string)
	if !ok {
		return 0, false
	}
	field, ok := acc.GetString(key)
	if !ok {
		return 0, false
	}
	return strings.Compare(field, want), true
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func formatValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%d", value)
	}
}
