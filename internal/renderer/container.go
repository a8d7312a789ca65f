package renderer

// Isolation wrapper attributes.
const (
	RootAttribute  = "data-treebark-root"
	ContainStyle   = "contain: content; isolation: isolate"
	ShadowRootMode = "open"
)

// Container describes an optional isolation wrapper around rendered output.
type Container struct {
	// Contain wraps output in a div with CSS containment.
	Contain bool
	// ShadowRoot places output inside a declarative shadow root.
	ShadowRoot bool
}

// Enabled reports whether any wrapping is requested.
func (c Container) Enabled() bool {
	return c.Contain || c.ShadowRoot
}

// Wrap surrounds events with the host element and, for ShadowRoot, a
// template carrying shadowrootmode.
func (c Container) Wrap(events []Event) []Event {
	if !c.Enabled() {
		return events
	}

	attrs := []Attr{{Name: RootAttribute}}
	if c.Contain {
		attrs = append(attrs, Attr{Name: "style", Value: ContainStyle})
	}

	inner := 1
	if c.ShadowRoot {
		inner = 2
	}

	out := make([]Event, 0, len(events)+4)
	out = append(out, Event{Kind: EventOpen, Tag: "div", Attrs: attrs})
	if c.ShadowRoot {
		out = append(out, Event{
			Kind:  EventOpen,
			Depth: 1,
			Tag:   "template",
			Attrs: []Attr{{Name: "shadowrootmode", Value: ShadowRootMode}},
		})
	}
	out = append(out, shift(events, inner)...)
	if c.ShadowRoot {
		out = append(out, Event{Kind: EventClose, Depth: 1, Tag: "template"})
	}
	out = append(out, Event{Kind: EventClose, Tag: "div"})

	return out
}
