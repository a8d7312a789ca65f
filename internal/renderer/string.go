package renderer

import (
	"strings"

	"golang.org/x/net/html"
)

// StringFormatter serializes events as HTML text.
//
// With an empty Indent the output is compact. Otherwise every node starts on
// its own line indented by depth, except that an element whose only child is
// text keeps it inline and unchanged, and an empty element closes on the
// same line. Newlines inside a text node among other children become extra
// indented lines.
type StringFormatter struct {
	Indent string
}

// Format serializes events.
func (f StringFormatter) Format(events []Event) string {
	var b strings.Builder
	for i, n := range nest(events) {
		if i > 0 && f.Indent != "" {
			b.WriteByte('\n')
		}
		f.write(&b, n, 0)
	}

	return b.String()
}

func (f StringFormatter) write(b *strings.Builder, n *node, level int) {
	pad := strings.Repeat(f.Indent, level)

	switch n.event.Kind {
	case EventText:
		f.writeText(b, n.event.Text, pad)
	case EventCommentOpen:
		b.WriteString(pad)
		b.WriteString("<!-- ")
		b.WriteString(inline(n.children))
		b.WriteString(" -->")
	case EventOpen:
		b.WriteString(pad)
		writeOpenTag(b, n.event)
		if n.event.Void {
			return
		}
		switch {
		case f.Indent == "":
			for _, c := range n.children {
				f.write(b, c, 0)
			}
		case len(n.children) == 1 && n.children[0].isText():
			b.WriteString(html.EscapeString(n.children[0].event.Text))
		case len(n.children) > 0:
			for _, c := range n.children {
				b.WriteByte('\n')
				f.write(b, c, level+1)
			}
			b.WriteByte('\n')
			b.WriteString(pad)
		}
		writeCloseTag(b, n.event.Tag)
	}
}

func (f StringFormatter) writeText(b *strings.Builder, text, pad string) {
	escaped := html.EscapeString(text)
	if f.Indent == "" {
		b.WriteString(escaped)
		return
	}

	for i, line := range strings.Split(escaped, "\n") {
		if i > 0 {
			b.WriteByte('\n')
		}
		if line != "" {
			b.WriteString(pad)
			b.WriteString(line)
		}
	}
}

// inline serializes nodes without indentation, as used for comment bodies.
func inline(nodes []*node) string {
	var b strings.Builder
	f := StringFormatter{}
	for _, n := range nodes {
		f.write(&b, n, 0)
	}

	return b.String()
}

func writeOpenTag(b *strings.Builder, ev Event) {
	b.WriteByte('<')
	b.WriteString(ev.Tag)
	for _, a := range ev.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Name)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Value))
		b.WriteByte('"')
	}
	b.WriteByte('>')
}

func writeCloseTag(b *strings.Builder, tag string) {
	b.WriteString("</")
	b.WriteString(tag)
	b.WriteByte('>')
}
