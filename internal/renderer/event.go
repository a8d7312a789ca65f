// Package renderer walks a template tree against a data context and emits
// an ordered stream of depth-tagged events. Two formatters consume the same
// stream: StringFormatter produces HTML text and DOMFormatter produces
// golang.org/x/net/html nodes, so the backends cannot diverge in what they
// render, only in how they serialize it.
package renderer

// EventKind identifies what an Event describes.
type EventKind int

const (
	// EventOpen starts an element. Void elements have no matching close.
	EventOpen EventKind = iota
	// EventClose ends the most recently opened element.
	EventClose
	// EventText is a run of unescaped character data.
	EventText
	// EventCommentOpen starts an HTML comment whose content is the events
	// up to the matching EventCommentClose.
	EventCommentOpen
	// EventCommentClose ends a comment.
	EventCommentClose
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventClose:
		return "close"
	case EventText:
		return "text"
	case EventCommentOpen:
		return "comment-open"
	case EventCommentClose:
		return "comment-close"
	default:
		return "unknown"
	}
}

// Attr is a validated attribute with its final, unescaped value.
type Attr struct {
	Name  string
	Value string
}

// Event is one step of a render traversal.
type Event struct {
	Kind  EventKind
	Depth int
	// Tag is set on open and close events.
	Tag   string
	Attrs []Attr
	Void  bool
	// Text is raw character data; formatters escape it.
	Text string
}

// node is the nested view of an event range. Formatters walk nodes rather
// than re-deriving nesting from depths.
type node struct {
	event    Event
	children []*node
}

func (n *node) isText() bool {
	return n.event.Kind == EventText
}

// nest folds a well-formed event stream into a forest. Unbalanced closes are
// ignored and unclosed elements are closed at the end of the stream.
func nest(events []Event) []*node {
	var roots []*node
	var stack []*node

	appendNode := func(n *node) {
		if len(stack) == 0 {
			roots = append(roots, n)
			return
		}
		parent := stack[len(stack)-1]
		parent.children = append(parent.children, n)
	}

	for _, ev := range events {
		switch ev.Kind {
		case EventOpen, EventCommentOpen:
			n := &node{event: ev}
			appendNode(n)
			if !ev.Void {
				stack = append(stack, n)
			}
		case EventClose, EventCommentClose:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case EventText:
			appendNode(&node{event: ev})
		}
	}

	return roots
}

// shift returns a copy of events with every depth increased by n.
func shift(events []Event, n int) []Event {
	out := make([]Event, len(events))
	for i, ev := range events {
		ev.Depth += n
		out[i] = ev
	}

	return out
}
