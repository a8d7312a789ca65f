package security

import (
	"strings"

	"github.com/conneroisu/treebark/internal/errors"
	"github.com/conneroisu/treebark/internal/validation"
)

var globalAttributes = map[string]bool{
	"id":    true,
	"class": true,
	"style": true,
	"title": true,
	"role":  true,
}

var tagAttributes = map[string]map[string]bool{
	"a":          {"href": true, "target": true, "rel": true},
	"img":        {"src": true, "alt": true, "width": true, "height": true},
	"table":      {"summary": true},
	"th":         {"scope": true, "colspan": true, "rowspan": true},
	"td":         {"colspan": true, "rowspan": true, "headers": true},
	"blockquote": {"cite": true},
	"q":          {"cite": true},
	"ol":         {"start": true, "reversed": true, "type": true},
	"li":         {"value": true},
	"time":       {"datetime": true},
	"details":    {"open": true},
}

// urlAttributes carry URLs and go through protocol validation.
var urlAttributes = map[string]bool{
	"href": true,
	"src":  true,
	"cite": true,
}

// CheckAttribute returns a warning when name may not appear on tag.
func CheckAttribute(tag, name string) error {
	if AttributeAllowed(tag, name) {
		return nil
	}

	return errors.Warnf(errors.ErrCodeAttributeNotAllowed,
		"Attribute %q is not allowed on tag %q", name, tag).WithTag(tag).WithAttribute(name)
}

// AttributeAllowed reports whether name may appear on tag.
func AttributeAllowed(tag, name string) bool {
	if globalAttributes[name] || prefixedAttribute(name) {
		return true
	}

	return tagAttributes[tag][name]
}

// prefixedAttribute accepts data-* and aria-* names with a conservative
// character set after the prefix.
func prefixedAttribute(name string) bool {
	var rest string
	switch {
	case strings.HasPrefix(name, "data-"):
		rest = name[len("data-"):]
	case strings.HasPrefix(name, "aria-"):
		rest = name[len("aria-"):]
	default:
		return false
	}
	if rest == "" {
		return false
	}
	for _, r := range rest {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}

	return true
}

// IsURLAttribute reports whether values of name are URLs.
func IsURLAttribute(name string) bool {
	return urlAttributes[name]
}

// CheckURL validates the protocol of a URL attribute value. Values of
// non-URL attributes always pass.
func CheckURL(tag, name, value string) error {
	if !urlAttributes[name] {
		return nil
	}
	if err := validation.ValidateURL(value); err != nil {
		return errors.Warnf(errors.ErrCodeURLBlocked,
			"Attribute %q on tag %q has a blocked URL", name, tag).
			WithTag(tag).WithAttribute(name).WithCause(err)
	}

	return nil
}

// blockedProperties name prototype and reflection hooks. Templates are shared
// with script-based renderers, so these segments are refused outright even
// when the data has such a key.
var blockedProperties = map[string]bool{
	"constructor": true,
	"__proto__":   true,
	"prototype":   true,
}

// IsBlockedProperty reports whether a path segment must never be resolved.
func IsBlockedProperty(segment string) bool {
	return blockedProperties[segment]
}

// CheckProperty returns a warning for a blocked path segment.
func CheckProperty(segment string) error {
	if blockedProperties[segment] {
		return errors.Warnf(errors.ErrCodePropertyBlocked,
			"Access to property %q is blocked for security reasons", segment)
	}

	return nil
}
