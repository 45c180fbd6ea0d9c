package db

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// IDField is the attribute that carries a record's identity.
const IDField = "id"

// Record is one stored entity: attribute name to value, plus an "id".
type Record map[string]any

// ID returns the record id, or "" if none is set.
func (r Record) ID() string {
	s, _ := NormalizeID(r[IDField])
	return s
}

// Clone returns a deep copy of r. Nested maps and slices are copied so a
// caller can never reach a stored record through a returned value.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case Record:
		return t.Clone()
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// NormalizeID converts an id value from JSON or Go code into its string
// form. Integral numbers render without a fractional part.
func NormalizeID(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, t != ""
	case json.Number:
		return t.String(), true
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return NormalizeID(float64(t))
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case uint:
		return strconv.FormatUint(uint64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case fmt.Stringer:
		return t.String(), true
	default:
		return "", false
	}
}

// ValuesEqual compares a stored attribute with a query value. Scalars of
// different kinds compare by their string form, so a query string "3"
// matches a stored 3 decoded from JSON.
func ValuesEqual(stored, query any) bool {
	if reflect.DeepEqual(stored, query) {
		return true
	}
	if stored == nil || query == nil {
		return false
	}
	if !isScalar(stored) || !isScalar(query) {
		return false
	}
	if a, ok := NormalizeID(stored); ok {
		if b, ok := NormalizeID(query); ok {
			return a == b
		}
	}
	return fmt.Sprint(stored) == fmt.Sprint(query)
}

func isScalar(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer:
		return false
	default:
		return true
	}
}

// Matches reports whether every key in query equals the record attribute.
func (r Record) Matches(query map[string]any) bool {
	for k, want := range query {
		got, ok := r[k]
		if !ok && want != nil {
			return false
		}
		if !ValuesEqual(got, want) {
			return false
		}
	}
	return true
}
