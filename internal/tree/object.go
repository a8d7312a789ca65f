// Package tree holds the template data model: an insertion-ordered mapping
// type, YAML/JSON decoding into that model, and the normalization of tag
// objects into a single canonical shape.
package tree

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Object is a mapping that remembers key insertion order. Template attribute
// order is significant for output, so decoded mappings use Object rather than
// a Go map.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject creates an empty Object.
func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// ObjectFromMap copies m into an Object with keys in sorted order.
func ObjectFromMap(m map[string]any) *Object {
	o := &Object{
		keys:   make([]string, 0, len(m)),
		values: make(map[string]any, len(m)),
	}
	for k := range m {
		o.keys = append(o.keys, k)
	}
	sort.Strings(o.keys)
	for _, k := range o.keys {
		o.values[k] = m[k]
	}

	return o
}

// Set adds or replaces a key. Replacing keeps the original position.
func (o *Object) Set(key string, value any) {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]

	return v, ok
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)

	return ok
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}

	return len(o.keys)
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)

	return out
}

// Without returns a copy of o with the named keys removed.
func (o *Object) Without(names ...string) *Object {
	out := NewObject()
	if o == nil {
		return out
	}
outer:
	for _, k := range o.keys {
		for _, n := range names {
			if k == n {
				continue outer
			}
		}
		out.Set(k, o.values[k])
	}

	return out
}

// MarshalJSON encodes the object with its keys in order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// AsObject views v as an Object. Plain string-keyed maps are accepted with
// their keys sorted.
func AsObject(v any) (*Object, bool) {
	switch t := v.(type) {
	case *Object:
		if t == nil {
			return nil, false
		}
		return t, true
	case map[string]any:
		return ObjectFromMap(t), true
	}

	return nil, false
}

// AsList views v as a template sequence.
func AsList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []*Object:
		out := make([]any, len(t))
		for i, o := range t {
			out[i] = o
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	}

	return nil, false
}
