// Package markdown renders ```treebark fenced code blocks inside Markdown
// documents through goldmark.
//
// A treebark block holds a YAML or JSON template, or a self-contained
// {template, data} document. Blocks that cannot be parsed are replaced by an
// escaped error banner so one bad block never breaks the surrounding page.
package markdown

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmrenderer "github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
	"golang.org/x/net/html"

	"github.com/conneroisu/treebark/internal/logging"
	"github.com/conneroisu/treebark/internal/renderer"
	"github.com/conneroisu/treebark/internal/resolver"
	"github.com/conneroisu/treebark/internal/tree"
)

// Language is the fence info string that selects treebark rendering.
const Language = "treebark"

// Options configures block rendering.
type Options struct {
	// Indent is passed to the string formatter.
	Indent string
	// Data is used for blocks that do not carry their own data.
	Data any
	// Diagnostics receives render diagnostics. Defaults to Discard.
	Diagnostics logging.Diagnostics
	// Fallback resolves paths missing from the block data.
	Fallback resolver.Fallback
	// MaxDepth limits template nesting.
	MaxDepth int
	// Strict replaces a block with the error banner when rendering it
	// reports any fatal diagnostic.
	Strict bool
}

type extension struct {
	opts Options
}

// New returns a goldmark extension that renders treebark fences.
func New(opts Options) goldmark.Extender {
	return &extension{opts: opts}
}

// Extend implements goldmark.Extender.
func (e *extension) Extend(m goldmark.Markdown) {
	m.Renderer().AddOptions(gmrenderer.WithNodeRenderers(
		util.Prioritized(&fenceRenderer{opts: e.opts}, 100),
	))
}

// Convert renders Markdown source with treebark fences enabled.
func Convert(src []byte, w io.Writer, opts Options) error {
	md := goldmark.New(goldmark.WithExtensions(New(opts)))

	return md.Convert(src, w)
}

type fenceRenderer struct {
	opts Options
}

// RegisterFuncs implements renderer.NodeRenderer.
func (r *fenceRenderer) RegisterFuncs(reg gmrenderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r *fenceRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	n := node.(*ast.FencedCodeBlock)
	language := n.Language(source)
	body := lines(n, source)

	if string(language) != Language {
		_, _ = w.WriteString("<pre><code")
		if language != nil {
			_, _ = w.WriteString(` class="language-`)
			_, _ = w.Write(util.EscapeHTML(language))
			_ = w.WriteByte('"')
		}
		_ = w.WriteByte('>')
		_, _ = w.Write(util.EscapeHTML(body))
		_, _ = w.WriteString("</code></pre>\n")
		return ast.WalkContinue, nil
	}

	_, _ = w.WriteString(RenderBlock(body, r.opts))
	_ = w.WriteByte('\n')

	return ast.WalkContinue, nil
}

func lines(n ast.Node, source []byte) []byte {
	var buf bytes.Buffer
	l := n.Lines().Len()
	for i := 0; i < l; i++ {
		line := n.Lines().At(i)
		buf.Write(line.Value(source))
	}

	return buf.Bytes()
}

// RenderBlock renders the contents of one treebark fence.
func RenderBlock(src []byte, opts Options) string {
	if strings.TrimSpace(string(src)) == "" {
		return ErrorBanner("empty treebark block")
	}

	doc, err := tree.ParseDocument(src)
	if err != nil {
		return ErrorBanner(err.Error())
	}
	data := doc.Data
	if data == nil {
		data = opts.Data
	}

	diag := &collector{next: opts.Diagnostics}
	if diag.next == nil {
		diag.next = logging.Discard
	}

	events := renderer.New(renderer.Options{
		Diagnostics: diag,
		Fallback:    opts.Fallback,
		MaxDepth:    opts.MaxDepth,
	}).Render(doc.Template, data)

	if opts.Strict && len(diag.fatal) > 0 {
		return ErrorBanner(diag.fatal[0])
	}

	return renderer.StringFormatter{Indent: opts.Indent}.Format(events)
}

// ErrorBanner formats msg as the inline error shown in place of a block.
func ErrorBanner(msg string) string {
	return `<div class="treebark-error"><strong>Treebark Error:</strong> ` + html.EscapeString(msg) + `</div>`
}

// collector forwards diagnostics and remembers fatal messages.
type collector struct {
	next  logging.Diagnostics
	fatal []string
}

func (c *collector) Error(msg string, fields ...interface{}) {
	c.fatal = append(c.fatal, msg)
	c.next.Error(msg, fields...)
}

func (c *collector) Warn(msg string, fields ...interface{}) {
	c.next.Warn(msg, fields...)
}

func (c *collector) Log(msg string, fields ...interface{}) {
	c.next.Log(msg, fields...)
}
