// Package security implements the allowlists that keep untrusted templates
// from producing executable markup: which tags render, which attributes each
// tag accepts, which CSS values pass, and which property names a path may
// touch.
package security

import (
	"github.com/conneroisu/treebark/internal/errors"
)

// TagKind classifies an allowed tag.
type TagKind int

const (
	// KindContainer tags have children and a closing tag.
	KindContainer TagKind = iota + 1
	// KindVoid tags self-close and never have children.
	KindVoid
	// KindSpecial tags are control nodes that emit no element of their own.
	KindSpecial
)

// String returns the kind name.
func (k TagKind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindVoid:
		return "void"
	case KindSpecial:
		return "special"
	default:
		return "unknown"
	}
}

// Special tag names.
const (
	TagIf      = "$if"
	TagComment = "$comment"
)

var containerTags = []string{
	"div", "span", "p", "header", "footer", "main", "section", "article", "aside", "nav",
	"h1", "h2", "h3", "h4", "h5", "h6",
	"strong", "em", "b", "i", "u", "s", "small", "mark", "sub", "sup",
	"abbr", "cite", "q", "code", "pre", "kbd", "samp", "var", "time", "blockquote", "address",
	"ul", "ol", "li", "dl", "dt", "dd",
	"table", "caption", "thead", "tbody", "tfoot", "tr", "th", "td",
	"a", "figure", "figcaption", "details", "summary",
}

var voidTags = []string{"img", "br", "hr", "wbr"}

var tagKinds = buildTagKinds()

func buildTagKinds() map[string]TagKind {
	kinds := make(map[string]TagKind, len(containerTags)+len(voidTags)+2)
	for _, t := range containerTags {
		kinds[t] = KindContainer
	}
	for _, t := range voidTags {
		kinds[t] = KindVoid
	}
	kinds[TagIf] = KindSpecial
	kinds[TagComment] = KindSpecial

	return kinds
}

// LookupTag returns the kind of an allowed tag.
func LookupTag(name string) (TagKind, bool) {
	kind, ok := tagKinds[name]

	return kind, ok
}

// IsVoid reports whether name is an allowed void tag.
func IsVoid(name string) bool {
	return tagKinds[name] == KindVoid
}

// CheckTag returns a fatal error when name is outside the allowlist.
func CheckTag(name string) error {
	if _, ok := tagKinds[name]; !ok {
		return errors.Fatalf(errors.ErrCodeTagNotAllowed, "Tag %q is not allowed", name).WithTag(name)
	}

	return nil
}

// AllowedTags lists every tag name of the given kind.
func AllowedTags(kind TagKind) []string {
	switch kind {
	case KindContainer:
		return append([]string(nil), containerTags...)
	case KindVoid:
		return append([]string(nil), voidTags...)
	case KindSpecial:
		return []string{TagComment, TagIf}
	}

	return nil
}
