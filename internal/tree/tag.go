package tree

import (
	"github.com/conneroisu/treebark/internal/errors"
)

// Reserved attribute keys.
const (
	KeyChildren = "$children"
	KeyBind     = "$bind"
	KeyFilter   = "$filter"
)

// Form records which of the tag shorthands a template used.
type Form int

const (
	// FormEmpty is a tag with a null value, e.g. `br: null`.
	FormEmpty Form = iota
	// FormText is the string shorthand, e.g. `p: "hello"`.
	FormText
	// FormList is the children shorthand, e.g. `div: [...]`.
	FormList
	// FormAttrs is the attributes object form.
	FormAttrs
)

// Tag is the canonical shape every tag object normalizes to before rendering.
type Tag struct {
	Name string
	Form Form
	// Attrs holds every key of the attributes object except $children.
	Attrs *Object
	// Children is nil when no children were supplied.
	Children []any
	// ChildrenKey reports whether $children appeared in the attributes object.
	ChildrenKey bool
}

// HasChildren reports whether any children were supplied.
func (t *Tag) HasChildren() bool {
	return len(t.Children) > 0
}

// IsTag reports whether v has the shape of a tag object (any mapping).
func IsTag(v any) bool {
	_, ok := AsObject(v)

	return ok
}

// ParseTag normalizes a tag object. A tag object must have exactly one key,
// the tag name.
func ParseTag(raw any) (*Tag, error) {
	obj, ok := AsObject(raw)
	if !ok {
		return nil, errors.NewFatal(errors.ErrCodeInvalidTemplate, "Template node must be a string, array, or tag object")
	}
	if obj.Len() != 1 {
		return nil, errors.Fatalf(errors.ErrCodeInvalidTemplate,
			"Tag object must have exactly one key, found %d", obj.Len())
	}

	name := obj.Keys()[0]
	value, _ := obj.Get(name)
	tag := &Tag{Name: name, Attrs: NewObject()}

	switch v := value.(type) {
	case nil:
		tag.Form = FormEmpty
	case string:
		tag.Form = FormText
		tag.Children = []any{v}
	default:
		if list, ok := AsList(v); ok {
			tag.Form = FormList
			tag.Children = list
			break
		}
		if attrs, ok := AsObject(v); ok {
			tag.Form = FormAttrs
			tag.Attrs = attrs.Without(KeyChildren)
			if children, ok := attrs.Get(KeyChildren); ok {
				tag.ChildrenKey = true
				tag.Children = normalizeChildren(children)
			}
			break
		}
		// Numbers and booleans behave like the text shorthand.
		tag.Form = FormText
		tag.Children = []any{v}
	}

	return tag, nil
}

func normalizeChildren(v any) []any {
	if v == nil {
		return nil
	}
	if list, ok := AsList(v); ok {
		return list
	}

	return []any{v}
}
