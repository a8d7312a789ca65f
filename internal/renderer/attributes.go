package renderer

import (
	"strings"

	"github.com/conneroisu/treebark/internal/condition"
	"github.com/conneroisu/treebark/internal/errors"
	"github.com/conneroisu/treebark/internal/security"
	"github.com/conneroisu/treebark/internal/tree"
)

const styleAttribute = "style"

// attributes validates and renders every attribute of an element in template
// order. Only a malformed style is fatal; every other problem drops the one
// attribute with a warning.
func (w *walk) attributes(tag string, attrs *tree.Object, sc scope) ([]Attr, error) {
	var out []Attr

	for _, name := range attrs.Keys() {
		if name == tree.KeyBind || name == tree.KeyFilter {
			continue
		}
		if strings.HasPrefix(name, "$") {
			w.report(errors.Warnf(errors.ErrCodeInvalidAttribute,
				"Reserved key %q is not supported on tag %q", name, tag).WithTag(tag).WithAttribute(name))
			continue
		}
		if err := security.CheckAttribute(tag, name); err != nil {
			w.report(err)
			continue
		}

		raw, _ := attrs.Get(name)

		if name == styleAttribute {
			style, err := w.style(tag, raw, sc)
			if err != nil {
				return nil, err
			}
			if style != "" {
				out = append(out, Attr{Name: name, Value: style})
			}
			continue
		}

		value, ok := w.attributeValue(tag, name, raw, sc)
		if !ok {
			continue
		}
		if err := security.CheckURL(tag, name, value); err != nil {
			w.report(err)
			continue
		}
		out = append(out, Attr{Name: name, Value: value})
	}

	return out, nil
}

// attributeValue renders one non-style attribute value. The boolean is false
// when the attribute should be omitted.
func (w *walk) attributeValue(tag, name string, raw any, sc scope) (string, bool) {
	value, ok := w.selectValue(tag, name, raw, sc)
	if !ok {
		return "", false
	}

	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return w.interpolate(v, sc), true
	}
	if isPrimitive(value) {
		return Format(value), true
	}

	w.report(errors.Warnf(errors.ErrCodeInvalidAttribute,
		"Attribute %q must be a string, number, boolean, or conditional", name).WithTag(tag).WithAttribute(name))

	return "", false
}

// selectValue resolves a conditional descriptor to its selected branch.
// Anything else passes through unchanged.
func (w *walk) selectValue(tag, name string, raw any, sc scope) (any, bool) {
	obj, ok := tree.AsObject(raw)
	if !ok || !obj.Has(condition.KeyCheck) {
		return raw, true
	}

	d, err := condition.Parse(obj)
	if err != nil {
		w.report(errors.Warnf(errors.ErrCodeInvalidCondition,
			"Conditional value for %q is invalid", name).WithTag(tag).WithAttribute(name).WithCause(err))
		return nil, false
	}
	for _, key := range d.Unknown {
		w.report(errors.Warnf(errors.ErrCodeInvalidAttribute,
			"Conditional value for %q does not support key %q", name, key).WithTag(tag).WithAttribute(name))
	}

	value, _ := w.resolve(sc, d.Check)
	selected, ok := d.Branch(value)
	if !ok {
		return nil, false
	}
	if !isPrimitive(selected) {
		w.report(errors.Warnf(errors.ErrCodeInvalidCondition,
			"Conditional value for %q must select a string, number, or boolean", name).
			WithTag(tag).WithAttribute(name))
		return nil, false
	}

	return selected, true
}

// style renders a CSS properties mapping. A style that is not a mapping is
// fatal for the element.
func (w *walk) style(tag string, raw any, sc scope) (string, error) {
	obj, ok := tree.AsObject(raw)
	if !ok || obj.Has(condition.KeyCheck) {
		return "", errors.Fatalf(errors.ErrCodeStyleInvalid,
			"Style attribute must be an object with CSS properties, not %s", describe(raw)).
			WithTag(tag).WithAttribute(styleAttribute)
	}

	var decls []security.Declaration
	for _, prop := range obj.Keys() {
		if err := security.CheckStyleProperty(tag, prop); err != nil {
			w.report(err)
			continue
		}

		raw, _ := obj.Get(prop)
		value, ok := w.styleValue(tag, prop, raw, sc)
		if !ok {
			continue
		}

		clean, warnings := security.SanitizeStyleValue(tag, prop, value)
		for _, warning := range warnings {
			w.report(warning)
		}
		if clean == "" {
			continue
		}
		decls = append(decls, security.Declaration{Property: prop, Value: clean})
	}

	return security.FormatStyle(decls), nil
}

func (w *walk) styleValue(tag, prop string, raw any, sc scope) (string, bool) {
	value, ok := w.selectValue(tag, styleAttribute, raw, sc)
	if !ok {
		return "", false
	}

	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return w.interpolate(v, sc), true
	case bool:
	default:
		if _, ok := condition.Number(v); ok {
			return Format(v), true
		}
	}

	w.report(errors.Warnf(errors.ErrCodeStyleInvalid,
		"CSS value for %q must be a string or number", prop).WithTag(tag).WithAttribute(styleAttribute))

	return "", false
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	}
	if _, ok := tree.AsList(v); ok {
		return "an array"
	}
	if _, ok := condition.Number(v); ok {
		return "a number"
	}
	if _, ok := tree.AsObject(v); ok {
		return "a conditional"
	}

	return "a value"
}
