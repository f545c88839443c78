package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ParseValues rebuilds a query from request parameters, the inverse of
// Values. Server implementations use this to evaluate filtered listings.
// The pagination token parameter is not part of the query and is ignored.
func ParseValues(values url.Values) (*Query, error) {
	q := New()

	for name, params := range values {
		if len(params) == 0 {
			continue
		}

		switch name {
		case ParamToken:
			continue
		case ParamLimit:
			limit, err := strconv.Atoi(params[0])
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %q", ParamLimit, params[0])
			}
			q.Limit(limit)
		case ParamSort:
			q.SortBy(strings.Split(params[0], ",")...)
		case ParamFields:
			q.Fields(strings.Split(params[0], ",")...)
		case ParamSince:
			q.Since(params[0])
		default:
			for _, param := range params {
				q.Where(parseCondition(name, param))
			}
		}
	}

	return q.Check()
}

func parseCondition(name, param string) Condition {
	op := Equals
	key := name
	for candidate, prefix := range paramPrefixes {
		if strings.HasPrefix(name, prefix) && len(name) > len(prefix) {
			op = candidate
			key = name[len(prefix):]
			break
		}
	}
	return Where(key, op, parseValue(param))
}

// parseValue guesses the filter value type: numbers and bools compare by
// value, everything else as string.
func parseValue(param string) interface{} {
	if number, err := strconv.ParseFloat(param, 64); err == nil {
		return number
	}
	switch param {
	case "true":
		return true
	case "false":
		return false
	}
	return param
}
