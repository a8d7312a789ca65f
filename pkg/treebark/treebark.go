// Package treebark renders declarative, untrusted template trees into HTML.
//
// A template is a tree of tag objects, fragments and text, usually decoded
// from YAML or JSON. Rendering resolves {{path}} markers against a data
// context, expands $bind, $filter and $if, and passes every tag, attribute,
// URL and style value through an allowlist before anything is emitted.
//
// # Rendering
//
//	in, err := treebark.ParseDocument(src)
//	if err != nil {
//		return err
//	}
//	out := treebark.RenderString(in, &treebark.Options{Indent: "  "})
//
// RenderString and RenderDOM never fail. Disallowed or malformed nodes are
// left out of the output and reported to Options.Logger: fatal problems
// empty the offending node, warnings drop a single attribute or value.
//
// # DOM output
//
// RenderDOM returns a golang.org/x/net/html DocumentNode whose children are
// the rendered nodes. Options.Container wraps the output in an isolating
// host element, optionally with a declarative shadow root.
package treebark

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/treebark/internal/logging"
	"github.com/conneroisu/treebark/internal/renderer"
	"github.com/conneroisu/treebark/internal/resolver"
	"github.com/conneroisu/treebark/internal/tree"
)

// Diagnostics receives render warnings and errors.
type Diagnostics = logging.Diagnostics

// Fallback resolves paths that are missing from the local data.
type Fallback = resolver.Fallback

// Container configures the isolation wrapper around rendered output.
type Container = renderer.Container

// DefaultMaxDepth is the nesting limit used when Options.MaxDepth is zero.
const DefaultMaxDepth = renderer.DefaultMaxDepth

// Input is a template and the data it renders against.
type Input struct {
	Template any
	Data     any
}

// Options configures a render. The zero value renders compactly and logs
// diagnostics to stderr.
type Options struct {
	// Indent is repeated once per nesting level; empty disables indentation.
	// See ParseIndent for converting loosely typed settings. Numeric widths
	// are capped at MaxIndentWidth spaces.
	Indent string
	// Logger receives diagnostics. Nil uses a console logger.
	Logger Diagnostics
	// PropertyFallback resolves paths missing from the data.
	PropertyFallback Fallback
	// MaxDepth limits template nesting.
	MaxDepth int
	// Container wraps the output for isolation.
	Container Container
}

func (o *Options) events(in Input) []renderer.Event {
	if o == nil {
		o = &Options{}
	}
	logger := o.Logger
	if logger == nil {
		logger = logging.NewConsole(nil)
	}

	r := renderer.New(renderer.Options{
		Diagnostics: logger,
		Fallback:    o.PropertyFallback,
		MaxDepth:    o.MaxDepth,
	})

	return o.Container.Wrap(r.Render(in.Template, in.Data))
}

// RenderString renders in as HTML text.
func RenderString(in Input, opts *Options) string {
	indent := ""
	if opts != nil {
		indent = opts.Indent
	}

	return renderer.StringFormatter{Indent: indent}.Format(opts.events(in))
}

// RenderDOM renders in as a node fragment. Indent is ignored.
func RenderDOM(in Input, opts *Options) *html.Node {
	return renderer.DOMFormatter{}.Format(opts.events(in))
}

// ParseDocument decodes YAML or JSON source. A top-level mapping with a
// "template" key is treated as a self-contained {template, data} document;
// anything else is the template itself.
func ParseDocument(src []byte) (Input, error) {
	doc, err := tree.ParseDocument(src)
	if err != nil {
		return Input{}, err
	}

	return Input{Template: doc.Template, Data: doc.Data}, nil
}

// ParseData decodes YAML or JSON data into the values the renderer expects.
func ParseData(src []byte) (any, error) {
	return tree.Parse(src)
}

// ResolveProperty resolves path against data and ancestors with the same
// rules interpolation uses. logger may be nil; blocked property access is
// reported to it as a warning.
func ResolveProperty(data any, path string, ancestors []any, logger Diagnostics, fallback Fallback) (any, bool) {
	return resolver.Resolve(data, path, ancestors, &resolver.Options{
		Diagnostics: logger,
		Fallback:    fallback,
	})
}

// MaxIndentWidth caps numeric indent settings so that a request cannot ask
// for an unbounded amount of padding per nesting level.
const MaxIndentWidth = 16

// ParseIndent converts a loosely typed indent setting: false or nil means no
// indentation, true means two spaces, a number means that many spaces (at
// most MaxIndentWidth), and a string is used literally.
func ParseIndent(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case bool:
		if t {
			return "  "
		}
		return ""
	case string:
		return t
	case int:
		return spaces(t)
	case int64:
		return spaces(int(t))
	case float64:
		return spaces(int(t))
	}

	return ""
}

// ParseIndentFlag interprets a command-line or config string: "", "false"
// and "0" disable indentation, "true" is two spaces, digits are a count of
// spaces capped at MaxIndentWidth, and "tab" or "\t" is a tab. Anything else is literal.
func ParseIndentFlag(s string) string {
	switch s {
	case "", "false":
		return ""
	case "true":
		return "  "
	case "tab", `\t`:
		return "\t"
	}
	if n, err := strconv.Atoi(s); err == nil {
		return spaces(n)
	}

	return s
}

func spaces(n int) string {
	if n <= 0 {
		return ""
	}
	if n > MaxIndentWidth {
		n = MaxIndentWidth
	}

	return strings.Repeat(" ", n)
}

// NewRecorder returns a Diagnostics sink that keeps every entry in memory.
func NewRecorder() *logging.Recorder {
	return logging.NewRecorder()
}

// Discard is a Diagnostics sink that drops everything.
var Discard Diagnostics = logging.Discard
