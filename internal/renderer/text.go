package renderer

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// interpolationPattern matches {{{path}}} (literal) before {{path}}. The
// inner class excludes braces, so there is no nested quantifier and RE2 scans
// in linear time.
var interpolationPattern = regexp.MustCompile(`\{\{\{([^{}]*)\}\}\}|\{\{([^{}]*)\}\}`)

// interpolate replaces every marker in s. {{{path}}} is emitted as the
// literal text {{path}}; {{path}} is resolved against the scope and
// formatted. The result is raw text; escaping happens in the formatters.
func (w *walk) interpolate(s string, sc scope) string {
	if !strings.Contains(s, "{{") {
		return s
	}

	matches := interpolationPattern.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(s[last:m[0]])
		last = m[1]

		if m[2] >= 0 {
			b.WriteString("{{")
			b.WriteString(s[m[2]:m[3]])
			b.WriteString("}}")
			continue
		}

		value, _ := w.resolve(sc, strings.TrimSpace(s[m[4]:m[5]]))
		b.WriteString(Format(value))
	}
	b.WriteString(s[last:])

	return b.String()
}

// Format converts a resolved value to text. Strings are verbatim, numbers
// use their shortest decimal form, booleans are "true"/"false", and nil,
// mappings and sequences format as the empty string.
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return formatFloat(t, 64)
	case float32:
		return formatFloat(float64(t), 32)
	case fmt.Stringer:
		return t.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return formatFloat(rv.Float(), 64)
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	}

	return ""
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}

	return strconv.FormatFloat(f, 'f', -1, bits)
}

// isPrimitive reports whether v can be used directly as an attribute or
// style value.
func isPrimitive(v any) bool {
	switch v.(type) {
	case nil, string, bool:
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String, reflect.Bool:
		return true
	}

	return false
}
