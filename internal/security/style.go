package security

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/conneroisu/treebark/internal/errors"
)

// Declaration is one sanitized CSS property/value pair.
type Declaration struct {
	Property string
	Value    string
}

// stylePropertyPattern accepts kebab-case identifiers with an optional
// vendor prefix dash.
var stylePropertyPattern = regexp.MustCompile(`^-?[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

// Properties that bind behavior rather than presentation.
var blockedStyleProperties = map[string]bool{
	"behavior":     true,
	"-moz-binding": true,
}

// blockedCSSPatterns are matched against the folded, whitespace-free value.
var blockedCSSPatterns = []string{
	"expression(",
	"javascript:",
	"vbscript:",
	"@import",
}

// CheckStyleProperty returns a warning for a CSS property name that is not a
// plain identifier or binds behavior.
func CheckStyleProperty(tag, property string) error {
	if !stylePropertyPattern.MatchString(property) {
		return errors.Warnf(errors.ErrCodeStyleInvalid,
			"CSS property %q is not a valid property name", property).WithTag(tag).WithAttribute("style")
	}
	if blockedStyleProperties[property] {
		return errors.Warnf(errors.ErrCodeStyleBlocked,
			"CSS property %q is not allowed", property).WithTag(tag).WithAttribute("style")
	}

	return nil
}

// SanitizeStyleValue checks one CSS value. A ';' outside parentheses is an
// attempt to inject further declarations, so only the text before it is kept.
// A value that contains a line break, leaves a string or parenthesis open,
// or contains a blocked pattern is dropped entirely and "" is returned.
func SanitizeStyleValue(tag, property, value string) (string, []error) {
	var warnings []error

	if strings.ContainsAny(value, "\n\r\f") {
		warnings = append(warnings, errors.Warnf(errors.ErrCodeStyleInjection,
			"CSS value for %q contains a line break", property).
			WithTag(tag).WithAttribute("style"))
		return "", warnings
	}

	if i := topLevelSemicolon(value); i >= 0 {
		value = value[:i]
		warnings = append(warnings, errors.Warnf(errors.ErrCodeStyleInjection,
			"CSS value for %q contains ';', keeping only the text before it", property).
			WithTag(tag).WithAttribute("style"))
	}

	value = strings.TrimSpace(value)
	if !balanced(value) {
		warnings = append(warnings, errors.Warnf(errors.ErrCodeStyleInjection,
			"CSS value for %q has an unterminated string or parenthesis", property).
			WithTag(tag).WithAttribute("style"))
		return "", warnings
	}
	if pattern := blockedCSSPattern(value); pattern != "" {
		warnings = append(warnings, errors.Warnf(errors.ErrCodeStyleBlocked,
			"CSS value for %q contains blocked pattern %q", property, pattern).
			WithTag(tag).WithAttribute("style"))
		return "", warnings
	}

	return value, warnings
}

// FormatStyle serializes declarations as "a: b; c: d".
func FormatStyle(decls []Declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		parts = append(parts, d.Property+": "+d.Value)
	}

	return strings.Join(parts, "; ")
}

// topLevelSemicolon finds the first ';' outside parentheses, so data URIs
// such as url(data:image/png;base64,...) survive. Quotes do not protect a ';'
// because a browser recovers from a broken string at the declaration
// boundary, but parentheses inside quotes do not count toward nesting.
func topLevelSemicolon(s string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ';' && depth == 0:
			return i
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		}
	}

	return -1
}

// balanced reports whether every string and parenthesis opened in s is
// closed. An open group would swallow the declarations that follow it.
func balanced(s string) bool {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			if depth == 0 {
				return false
			}
			depth--
		}
	}

	return quote == 0 && depth == 0
}

// blockedCSSPattern returns the first dangerous pattern found in value, or "".
func blockedCSSPattern(value string) string {
	norm := normalizeCSS(value)

	if strings.Contains(norm, `\`) {
		return `\`
	}
	for _, p := range blockedCSSPatterns {
		if strings.Contains(norm, p) {
			return p
		}
	}

	rest := norm
	for {
		i := strings.Index(rest, "url(")
		if i < 0 {
			break
		}
		rest = rest[i+len("url("):]
		arg := strings.TrimLeft(rest, `"'`)
		if !strings.HasPrefix(arg, "data:") {
			return "url("
		}
	}

	return ""
}

// normalizeCSS case-folds the value and removes whitespace and comments so
// that "U R L (" and "expr/**/ession(" match their plain forms.
func normalizeCSS(value string) string {
	folded := cases.Fold().String(value)

	var b strings.Builder
	b.Grow(len(folded))
	for i := 0; i < len(folded); i++ {
		c := folded[i]
		if c == '/' && i+1 < len(folded) && folded[i+1] == '*' {
			end := strings.Index(folded[i+2:], "*/")
			if end < 0 {
				break
			}
			i += end + 3
			continue
		}
		switch c {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			continue
		}
		b.WriteByte(c)
	}

	return b.String()
}
