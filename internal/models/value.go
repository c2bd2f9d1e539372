package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Value is one node of a decoded JSON document: null, bool, number, string,
// list or object. Accessors are total — they report whether the node has the
// requested shape instead of panicking, so extraction rules can probe
// arbitrarily malformed records.
type Value struct {
	v any
}

// NewValue wraps a value produced by encoding/json decoding
// (nil, bool, string, float64, json.Number, []any, map[string]any).
func NewValue(v any) Value {
	return Value{v: v}
}

// RawRecord is one nested record as returned by an API page. It is opaque to
// every component except the normalizer.
type RawRecord map[string]Value

// NewRawRecord wraps a decoded JSON object.
func NewRawRecord(m map[string]any) RawRecord {
	rec := make(RawRecord, len(m))
	for k, v := range m {
		rec[k] = NewValue(v)
	}
	return rec
}

// Get returns the named top-level field, or a null Value when absent.
func (r RawRecord) Get(name string) Value {
	if v, ok := r[name]; ok {
		return v
	}
	return Value{}
}

// IsNull reports whether the node is JSON null or absent.
func (v Value) IsNull() bool {
	return v.v == nil
}

// AsString returns the node as a string if it is one.
func (v Value) AsString() (string, bool) {
	s, ok := v.v.(string)
	return s, ok
}

// AsNumber returns the node as a float64 if it is numeric.
func (v Value) AsNumber() (float64, bool) {
	switch n := v.v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// AsInt returns the node as an int64 if it is numeric with no fractional part.
func (v Value) AsInt() (int64, bool) {
	switch n := v.v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		i := int64(n)
		if float64(i) == n {
			return i, true
		}
	}
	return 0, false
}

// AsBool returns the node as a bool if it is one.
func (v Value) AsBool() (bool, bool) {
	b, ok := v.v.(bool)
	return b, ok
}

// AsObject reports whether the node is a JSON object.
func (v Value) AsObject() (map[string]any, bool) {
	m, ok := v.v.(map[string]any)
	return m, ok
}

// AsList returns the node's elements if it is a JSON array.
func (v Value) AsList() ([]Value, bool) {
	l, ok := v.v.([]any)
	if !ok {
		return nil, false
	}
	items := make([]Value, len(l))
	for i, e := range l {
		items[i] = Value{v: e}
	}
	return items, true
}

// Field descends into an object field. Descending through null, a missing
// key, or a non-object yields a null Value.
func (v Value) Field(name string) Value {
	m, ok := v.v.(map[string]any)
	if !ok {
		return Value{}
	}
	c, ok := m[name]
	if !ok {
		return Value{}
	}
	return Value{v: c}
}

// Raw exposes the underlying decoded value.
func (v Value) Raw() any {
	return v.v
}

// String renders scalars the way they would appear in a flat column: numbers
// without a float exponent, booleans as true/false. Composite nodes render as
// their JSON encoding.
func (v Value) String() string {
	switch n := v.v.(type) {
	case nil:
		return ""
	case string:
		return n
	case bool:
		return strconv.FormatBool(n)
	case json.Number:
		return n.String()
	case float64:
		if n == float64(int64(n)) {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	b, err := json.Marshal(v.v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
