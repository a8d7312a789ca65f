package renderer

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DOMFormatter builds golang.org/x/net/html nodes from events. The result is
// a DocumentNode used as a fragment: its children are the rendered roots.
type DOMFormatter struct{}

// Format builds the fragment.
func (DOMFormatter) Format(events []Event) *html.Node {
	frag := &html.Node{Type: html.DocumentNode}
	for _, n := range nest(events) {
		frag.AppendChild(build(n))
	}

	return frag
}

func build(n *node) *html.Node {
	switch n.event.Kind {
	case EventText:
		return &html.Node{Type: html.TextNode, Data: n.event.Text}
	case EventCommentOpen:
		// Comment data is held decoded, as the parser would produce it from
		// the string output. html.Render re-escapes '&' and any '>' that
		// could close the comment early.
		return &html.Node{Type: html.CommentNode, Data: " " + html.UnescapeString(inline(n.children)) + " "}
	}

	el := &html.Node{
		Type:     html.ElementNode,
		Data:     n.event.Tag,
		DataAtom: atom.Lookup([]byte(n.event.Tag)),
	}
	for _, a := range n.event.Attrs {
		setAttribute(el, a.Name, a.Value)
	}
	for _, c := range n.children {
		el.AppendChild(build(c))
	}

	return el
}

// setAttribute replaces an existing attribute of the same name or appends a
// new one.
func setAttribute(el *html.Node, name, value string) {
	for i := range el.Attr {
		if el.Attr[i].Key == name {
			el.Attr[i].Val = value
			return
		}
	}
	el.Attr = append(el.Attr, html.Attribute{Key: name, Val: value})
}
