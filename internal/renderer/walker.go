package renderer

import (
	"github.com/conneroisu/treebark/internal/condition"
	"github.com/conneroisu/treebark/internal/errors"
	"github.com/conneroisu/treebark/internal/logging"
	"github.com/conneroisu/treebark/internal/resolver"
	"github.com/conneroisu/treebark/internal/security"
	"github.com/conneroisu/treebark/internal/tree"
)

// DefaultMaxDepth bounds template nesting.
const DefaultMaxDepth = 128

// Options configures a Renderer.
type Options struct {
	// Diagnostics receives warnings and fatal errors. Defaults to Discard.
	Diagnostics logging.Diagnostics
	// Fallback resolves paths that are missing from the local data.
	Fallback resolver.Fallback
	// MaxDepth limits template nesting; zero means DefaultMaxDepth.
	MaxDepth int
}

// Renderer walks templates. It holds no per-render state and is safe for
// concurrent use.
type Renderer struct {
	diag     logging.Diagnostics
	fallback resolver.Fallback
	maxDepth int
}

// New creates a Renderer.
func New(opts Options) *Renderer {
	r := &Renderer{
		diag:     opts.Diagnostics,
		fallback: opts.Fallback,
		maxDepth: opts.MaxDepth,
	}
	if r.diag == nil {
		r.diag = logging.Discard
	}
	if r.maxDepth <= 0 {
		r.maxDepth = DefaultMaxDepth
	}

	return r
}

// Render walks template against data and returns the event stream. It never
// fails: problems are reported to the diagnostics sink and the offending
// node or attribute is left out.
func (r *Renderer) Render(template, data any) []Event {
	w := &walk{
		r:           r,
		resolveOpts: &resolver.Options{Diagnostics: r.diag, Fallback: r.fallback},
	}
	w.node(template, scope{data: data}, position{})

	return w.events
}

// scope is the data visible to a node and the stack of contexts it was
// reached through.
type scope struct {
	data      any
	ancestors []any
}

// enter returns the scope for a binding to value.
func (s scope) enter(value any) scope {
	return scope{data: value, ancestors: resolver.Push(s.ancestors, s.data)}
}

// position tracks where in the output a node lands.
type position struct {
	depth     int
	level     int
	inComment bool
}

func (p position) next() position {
	p.level++
	return p
}

func (p position) child() position {
	p.depth++
	p.level++
	return p
}

type walk struct {
	r           *Renderer
	events      []Event
	resolveOpts *resolver.Options
}

func (w *walk) resolve(sc scope, path string) (any, bool) {
	return resolver.Resolve(sc.data, path, sc.ancestors, w.resolveOpts)
}

func (w *walk) report(err error) {
	logging.Report(w.r.diag, err)
}

func (w *walk) emit(ev Event) {
	w.events = append(w.events, ev)
}

// node renders any template node. A fatal error discards whatever the node
// had already emitted.
func (w *walk) node(n any, sc scope, pos position) {
	if pos.level > w.r.maxDepth {
		w.report(errors.Fatalf(errors.ErrCodeMaxDepth,
			"Template exceeds the maximum nesting depth of %d", w.r.maxDepth))
		return
	}

	switch v := n.(type) {
	case nil:
		return
	case string:
		w.text(v, sc, pos)
		return
	}

	if list, ok := tree.AsList(n); ok {
		w.children(list, sc, pos.next())
		return
	}
	if tree.IsTag(n) {
		mark := len(w.events)
		if err := w.tag(n, sc, pos); err != nil {
			w.events = w.events[:mark]
			w.report(err)
		}
		return
	}
	if isPrimitive(n) {
		w.text(Format(n), sc, pos)
		return
	}

	w.report(errors.NewFatal(errors.ErrCodeInvalidTemplate,
		"Template node must be a string, array, or tag object"))
}

func (w *walk) text(s string, sc scope, pos position) {
	out := w.interpolate(s, sc)
	if out == "" {
		return
	}
	w.emit(Event{Kind: EventText, Depth: pos.depth, Text: out})
}

// children renders a list of sibling nodes. When the current data is a
// sequence, a child tag bound to "." repeats once per element.
func (w *walk) children(list []any, sc scope, pos position) {
	items := resolver.Items(sc.data)
	iterate := resolver.IsSequence(sc.data)

	for _, child := range list {
		if iterate {
			if obj, ok := implicitRepeat(child); ok {
				w.repeat(obj, items, sc, pos)
				continue
			}
		}
		w.node(child, sc, pos)
	}
}

// implicitRepeat reports whether child is a tag whose attributes bind ".",
// and returns it with $bind removed.
func implicitRepeat(child any) (*tree.Object, bool) {
	obj, ok := tree.AsObject(child)
	if !ok || obj.Len() != 1 {
		return nil, false
	}
	name := obj.Keys()[0]
	if name == security.TagIf || name == security.TagComment {
		return nil, false
	}
	raw, _ := obj.Get(name)
	attrs, ok := tree.AsObject(raw)
	if !ok {
		return nil, false
	}
	if bind, _ := attrs.Get(tree.KeyBind); bind != "." {
		return nil, false
	}

	out := tree.NewObject()
	out.Set(name, attrs.Without(tree.KeyBind))

	return out, true
}

// repeat renders tmpl once per item, applying the tag's $filter if present.
func (w *walk) repeat(tmpl *tree.Object, items []any, sc scope, pos position) {
	name := tmpl.Keys()[0]
	raw, _ := tmpl.Get(name)
	attrs, _ := tree.AsObject(raw)

	var filter *condition.Descriptor
	if f, ok := attrs.Get(tree.KeyFilter); ok {
		d, err := w.parseFilter(name, f)
		if err != nil {
			w.report(err)
			return
		}
		filter = d
		tmpl = tree.NewObject()
		tmpl.Set(name, attrs.Without(tree.KeyFilter))
	}

	for _, item := range items {
		itemScope := sc.enter(item)
		if filter != nil && !w.keep(filter, itemScope) {
			continue
		}
		w.node(tmpl, itemScope, pos)
	}
}

func (w *walk) tag(raw any, sc scope, pos position) error {
	t, err := tree.ParseTag(raw)
	if err != nil {
		return err
	}

	switch t.Name {
	case security.TagIf:
		return w.conditional(t, sc, pos)
	case security.TagComment:
		return w.comment(t, sc, pos)
	}

	return w.element(t, sc, pos)
}

// conditional renders the selected $then or $else branch in place.
func (w *walk) conditional(t *tree.Tag, sc scope, pos position) error {
	if t.Form != tree.FormAttrs {
		return errors.Fatalf(errors.ErrCodeInvalidCondition,
			"%q tag requires an attributes object with %q", security.TagIf, condition.KeyCheck).WithTag(t.Name)
	}
	if t.ChildrenKey {
		w.report(errors.Warnf(errors.ErrCodeInvalidAttribute,
			"%q tag does not support %q; use %q and %q", security.TagIf, tree.KeyChildren,
			condition.KeyThen, condition.KeyElse).WithTag(t.Name).WithAttribute(tree.KeyChildren))
	}

	d, err := condition.Parse(t.Attrs)
	if err != nil {
		return wrapTag(err, t.Name)
	}
	for _, key := range d.Unknown {
		w.report(errors.Warnf(errors.ErrCodeInvalidAttribute,
			"%q tag does not support attribute %q", security.TagIf, key).WithTag(t.Name).WithAttribute(key))
	}
	for _, branch := range []struct {
		key   string
		value any
	}{{condition.KeyThen, d.Then}, {condition.KeyElse, d.Else}} {
		if _, ok := tree.AsList(branch.value); ok {
			return errors.Fatalf(errors.ErrCodeInvalidCondition,
				"%q must be a single node, not an array; wrap multiple nodes in a container tag", branch.key).
				WithTag(t.Name).WithAttribute(branch.key)
		}
	}

	value, _ := w.resolve(sc, d.Check)
	if selected, ok := d.Branch(value); ok {
		w.node(selected, sc, pos.next())
	}

	return nil
}

// comment renders its children inside an HTML comment.
func (w *walk) comment(t *tree.Tag, sc scope, pos position) error {
	if pos.inComment {
		return errors.NewFatal(errors.ErrCodeNestedComment, "Nested comments are not allowed").WithTag(t.Name)
	}
	for _, key := range t.Attrs.Keys() {
		w.report(errors.Warnf(errors.ErrCodeInvalidAttribute,
			"%q tag does not support attribute %q", security.TagComment, key).WithTag(t.Name).WithAttribute(key))
	}

	w.emit(Event{Kind: EventCommentOpen, Depth: pos.depth})
	inner := pos.child()
	inner.inComment = true
	w.children(t.Children, sc, inner)
	w.emit(Event{Kind: EventCommentClose, Depth: pos.depth})

	return nil
}

// element renders an ordinary allowlisted tag, including $bind and $filter.
func (w *walk) element(t *tree.Tag, sc scope, pos position) error {
	if err := security.CheckTag(t.Name); err != nil {
		return err
	}

	void := security.IsVoid(t.Name)
	children := t.Children
	if void && t.HasChildren() {
		w.report(errors.Warnf(errors.ErrCodeVoidChildren,
			"Tag %q is a void element and cannot have children", t.Name).WithTag(t.Name))
		children = nil
	}

	bindRaw, hasBind := t.Attrs.Get(tree.KeyBind)
	filterRaw, hasFilter := t.Attrs.Get(tree.KeyFilter)

	if !hasBind {
		if hasFilter {
			w.report(errors.Warnf(errors.ErrCodeInvalidAttribute,
				"%q requires %q and is ignored", tree.KeyFilter, tree.KeyBind).WithTag(t.Name).WithAttribute(tree.KeyFilter))
		}
		return w.open(t.Name, void, t.Attrs, sc, pos, func() {
			w.children(children, sc, pos.child())
		})
	}

	path, ok := bindRaw.(string)
	if !ok {
		return errors.Fatalf(errors.ErrCodeInvalidPath,
			"%q must be a string path", tree.KeyBind).WithTag(t.Name).WithAttribute(tree.KeyBind)
	}
	if err := resolver.ValidateBindingPath(tree.KeyBind, path); err != nil {
		return wrapTag(err, t.Name)
	}
	bound, _ := w.resolve(sc, path)

	if !resolver.IsSequence(bound) {
		if hasFilter {
			w.report(errors.Warnf(errors.ErrCodeInvalidAttribute,
				"%q only applies when %q resolves to an array", tree.KeyFilter, tree.KeyBind).
				WithTag(t.Name).WithAttribute(tree.KeyFilter))
		}
		inner := sc.enter(bound)
		return w.open(t.Name, void, t.Attrs, inner, pos, func() {
			w.children(children, inner, pos.child())
		})
	}

	var filter *condition.Descriptor
	if hasFilter {
		d, err := w.parseFilter(t.Name, filterRaw)
		if err != nil {
			return err
		}
		filter = d
	}

	items := resolver.Items(bound)
	return w.open(t.Name, void, t.Attrs, sc, pos, func() {
		for _, item := range items {
			itemScope := sc.enter(item)
			if filter != nil && !w.keep(filter, itemScope) {
				continue
			}
			w.children(children, itemScope, pos.child())
		}
	})
}

// open validates attributes against attrScope, then emits the element around
// whatever body emits.
func (w *walk) open(name string, void bool, attrs *tree.Object, attrScope scope, pos position, body func()) error {
	rendered, err := w.attributes(name, attrs, attrScope)
	if err != nil {
		return err
	}

	w.emit(Event{Kind: EventOpen, Depth: pos.depth, Tag: name, Attrs: rendered, Void: void})
	if void {
		return nil
	}
	body()
	w.emit(Event{Kind: EventClose, Depth: pos.depth, Tag: name})

	return nil
}

func (w *walk) parseFilter(tag string, raw any) (*condition.Descriptor, error) {
	obj, ok := tree.AsObject(raw)
	if !ok {
		return nil, errors.Fatalf(errors.ErrCodeInvalidCondition,
			"%q must be a conditional object with %q", tree.KeyFilter, condition.KeyCheck).
			WithTag(tag).WithAttribute(tree.KeyFilter)
	}
	d, err := condition.Parse(obj)
	if err != nil {
		return nil, wrapTag(err, tag)
	}
	for _, key := range d.Unknown {
		w.report(errors.Warnf(errors.ErrCodeInvalidAttribute,
			"%q does not support key %q", tree.KeyFilter, key).WithTag(tag).WithAttribute(tree.KeyFilter))
	}

	return d, nil
}

// keep evaluates a filter against one item's scope.
func (w *walk) keep(filter *condition.Descriptor, sc scope) bool {
	value, _ := w.resolve(sc, filter.Check)
	return filter.Evaluate(value)
}

func wrapTag(err error, tag string) error {
	if re, ok := err.(*errors.RenderError); ok && re.Tag == "" {
		return re.WithTag(tag)
	}

	return err
}
