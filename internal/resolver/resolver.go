// Package resolver resolves dotted property paths against a data value and
// an explicit stack of ancestor contexts.
//
// A path is either "." (the data itself), a parent reference made of one or
// more leading ".." groups optionally separated by "/" ("..name",
// "../..name"), or plain segments separated by "." where numeric segments
// index into sequences ("items.0.name"). Resolution never panics: anything
// that cannot be indexed yields "not found".
package resolver

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/conneroisu/treebark/internal/errors"
	"github.com/conneroisu/treebark/internal/logging"
	"github.com/conneroisu/treebark/internal/security"
	"github.com/conneroisu/treebark/internal/tree"
)

// Fallback is consulted with the original arguments whenever a path does not
// resolve locally, letting callers supply global lookups such as site-wide
// strings.
type Fallback func(path string, data any, ancestors []any) (any, bool)

// Options configures a resolution.
type Options struct {
	// Diagnostics receives a warning for blocked property access.
	Diagnostics logging.Diagnostics
	// Fallback is used when local resolution fails.
	Fallback Fallback
}

// Resolve looks path up against data and ancestors. The boolean is false
// when the path does not resolve; a resolved nil value returns (nil, true).
func Resolve(data any, path string, ancestors []any, opts *Options) (any, bool) {
	if opts == nil {
		opts = &Options{}
	}

	path = strings.TrimSpace(path)
	if path == "." {
		return data, true
	}
	if path == "" {
		return nil, false
	}

	current := data
	rest := path

	if strings.HasPrefix(rest, "..") {
		levels := 0
		for strings.HasPrefix(rest, "..") {
			levels++
			rest = strings.TrimPrefix(rest[2:], "/")
		}
		if levels > len(ancestors) {
			return fallback(opts, path, data, ancestors)
		}
		current = ancestors[len(ancestors)-levels]
		if rest == "" {
			return current, true
		}
	}

	segments := strings.Split(rest, ".")
	for _, seg := range segments {
		if err := security.CheckProperty(seg); err != nil {
			logging.Report(opts.Diagnostics, err)
			return nil, false
		}
	}

	for _, seg := range segments {
		next, ok := Index(current, seg)
		if !ok {
			return fallback(opts, path, data, ancestors)
		}
		current = next
	}

	return current, true
}

func fallback(opts *Options, path string, data any, ancestors []any) (any, bool) {
	if opts.Fallback == nil {
		return nil, false
	}

	return opts.Fallback(path, data, ancestors)
}

// Push returns a new ancestor stack with data on top. The input slice is
// never modified, so sibling scopes cannot observe each other's pushes.
func Push(ancestors []any, data any) []any {
	out := make([]any, len(ancestors)+1)
	copy(out, ancestors)
	out[len(ancestors)] = data

	return out
}

// Index looks up one path segment on v. Mappings are indexed by key,
// sequences by decimal index (plus "length"), and structs by exported field
// name or json tag.
func Index(v any, key string) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case *tree.Object:
		return t.Get(key)
	case map[string]any:
		val, ok := t[key]
		return val, ok
	case []any:
		return indexSequence(len(t), key, func(i int) any { return t[i] })
	case string, bool, int, int64, float64:
		return nil, false
	}

	return indexReflect(reflect.ValueOf(v), key)
}

func indexSequence(n int, key string, at func(int) any) (any, bool) {
	if key == "length" {
		return n, true
	}
	i, ok := parseIndex(key)
	if !ok || i >= n {
		return nil, false
	}

	return at(i), true
}

// parseIndex accepts plain non-negative decimal integers only.
func parseIndex(key string) (int, bool) {
	if key == "" || len(key) > 1 && key[0] == '0' {
		return 0, false
	}
	for i := 0; i < len(key); i++ {
		if key[i] < '0' || key[i] > '9' {
			return 0, false
		}
	}
	i, err := strconv.Atoi(key)
	if err != nil {
		return 0, false
	}

	return i, true
}

func indexReflect(rv reflect.Value, key string) (any, bool) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		val := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !val.IsValid() {
			return nil, false
		}
		return val.Interface(), true
	case reflect.Slice, reflect.Array:
		return indexSequence(rv.Len(), key, func(i int) any { return rv.Index(i).Interface() })
	case reflect.Struct:
		return structField(rv, key)
	}

	return nil, false
}

func structField(rv reflect.Value, key string) (any, bool) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			if n, _, _ := strings.Cut(tag, ","); n != "" && n != "-" {
				name = n
			}
		}
		if name == key || f.Name == key {
			return rv.Field(i).Interface(), true
		}
	}

	return nil, false
}

// IsSequence reports whether v is a list value that bindings iterate.
func IsSequence(v any) bool {
	switch v.(type) {
	case nil, string, *tree.Object, map[string]any:
		return false
	case []any:
		return true
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}

	return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
}

// Items returns the elements of a sequence value, or nil.
func Items(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	if !IsSequence(v) {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}

	return out
}

// ValidateBindingPath checks a $bind or $check path. Parent references and
// interpolation markers are only meaningful inside {{...}} text, so both are
// rejected here.
func ValidateBindingPath(key, path string) error {
	if strings.Contains(path, "..") {
		return errors.Fatalf(errors.ErrCodeInvalidPath,
			"%s path %q cannot contain parent references (..)", key, path)
	}
	if strings.Contains(path, "{{") {
		return errors.Fatalf(errors.ErrCodeInvalidPath,
			"%s path %q cannot contain interpolation markers", key, path)
	}
	if strings.TrimSpace(path) == "" {
		return errors.Fatalf(errors.ErrCodeInvalidPath, "%s path cannot be empty", key)
	}

	return nil
}
