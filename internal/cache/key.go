// ABOUTME: Composite cache key: entity type plus a normalized filter signature
// ABOUTME: Logically identical queries always map to the same key

package cache

import (
	"net/url"
	"sort"
	"strings"

	"github.com/2389/fintrack/internal/entity"
)

// Key addresses one cached value: a (type, filter) pair. Filter is a
// canonical serialization of the query parameters, so it is safe to compare
// keys and to use them as map keys.
type Key struct {
	Type   entity.Type
	Filter string
}

// NewKey builds a key for a list query. Parameters are normalized: keys are
// sorted, multiple values per key are sorted, and empty values are dropped,
// so property ordering never produces distinct keys for the same query.
func NewKey(t entity.Type, params url.Values) Key {
	return Key{Type: t, Filter: FilterSignature(params)}
}

// NewRecordKey builds a key for a single record fetched by id.
func NewRecordKey(t entity.Type, id string) Key {
	return Key{Type: t, Filter: "id=" + id}
}

// FilterSignature returns the canonical serialization of query parameters.
func FilterSignature(params url.Values) string {
	if len(params) == 0 {
		return ""
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		values := append([]string(nil), params[name]...)
		sort.Strings(values)
		for _, v := range values {
			if v == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(url.QueryEscape(name))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(v))
		}
	}
	return sb.String()
}

func (k Key) String() string {
	if k.Filter == "" {
		return string(k.Type)
	}
	return string(k.Type) + "?" + k.Filter
}
