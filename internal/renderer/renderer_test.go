package renderer

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/treebark/internal/errors"
	"github.com/conneroisu/treebark/internal/logging"
	"github.com/conneroisu/treebark/internal/tree"
)

func parse(t *testing.T, src string) any {
	t.Helper()
	if src == "" {
		return nil
	}
	v, err := tree.Parse([]byte(src))
	require.NoError(t, err)

	return v
}

func renderWith(t *testing.T, opts Options, indent, tmpl, data string) string {
	t.Helper()
	events := New(opts).Render(parse(t, tmpl), parse(t, data))

	return StringFormatter{Indent: indent}.Format(events)
}

func render(t *testing.T, tmpl, data string) (string, *logging.Recorder) {
	t.Helper()
	rec := logging.NewRecorder()

	return renderWith(t, Options{Diagnostics: rec}, "", tmpl, data), rec
}

func codes(rec *logging.Recorder) []string {
	var out []string
	for _, e := range rec.Entries() {
		if code, ok := e.Fields["code"].(string); ok {
			out = append(out, code)
		}
	}

	return out
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		data string
		want string
	}{
		{
			name: "nested children",
			tmpl: "div:\n  $children:\n    - h1: Title\n    - p: Content",
			want: "<div><h1>Title</h1><p>Content</p></div>",
		},
		{name: "text shorthand", tmpl: "p: hello", want: "<p>hello</p>"},
		{name: "list shorthand", tmpl: "ul: [{li: a}, {li: b}]", want: "<ul><li>a</li><li>b</li></ul>"},
		{name: "fragment", tmpl: "[{p: a}, {p: b}]", want: "<p>a</p><p>b</p>"},
		{name: "root text", tmpl: `"fish & chips"`, want: "fish &amp; chips"},
		{
			name: "reserved characters escaped",
			tmpl: `p: '<b>"x" ''y'' & z</b>'`,
			want: "<p>&lt;b&gt;&#34;x&#34; &#39;y&#39; &amp; z&lt;/b&gt;</p>",
		},
		{name: "interpolation", tmpl: `p: "Hello {{user.name}}!"`, data: "user: {name: Ada}", want: "<p>Hello Ada!</p>"},
		{
			name: "interpolated value escaped once",
			tmpl: `p: "{{v}}"`,
			data: `v: "<i>&amp;</i>"`,
			want: "<p>&lt;i&gt;&amp;amp;&lt;/i&gt;</p>",
		},
		{name: "triple braces are literal", tmpl: `p: "Use {{{name}}} here"`, data: "name: x", want: "<p>Use {{name}} here</p>"},
		{name: "missing value is empty", tmpl: `p: "[{{missing}}]"`, want: "<p>[]</p>"},
		{name: "composite value is empty", tmpl: `p: "[{{user}}]"`, data: "user: {name: Ada}", want: "<p>[]</p>"},
		{name: "scalars", tmpl: `p: "{{n}} {{f}} {{b}}"`, data: "{n: 3, f: 1.5, b: true}", want: "<p>3 1.5 true</p>"},
		{name: "numeric text child", tmpl: "p: 42", want: "<p>42</p>"},
		{name: "void element", tmpl: "img: {src: /a.png, alt: A}", want: `<img src="/a.png" alt="A">`},
		{name: "void shorthand", tmpl: "p: [a, {br: null}, b]", want: "<p>a<br>b</p>"},
		{name: "empty element", tmpl: "div: null", want: "<div></div>"},
		{name: "attribute order", tmpl: "div: {id: x, class: y, title: z}", want: `<div id="x" class="y" title="z"></div>`},
		{
			name: "attribute interpolation",
			tmpl: `a: {href: "/items/{{id}}", $children: [Item]}`,
			data: "id: 7",
			want: `<a href="/items/7">Item</a>`,
		},
		{
			name: "attribute escaping",
			tmpl: `div: {title: "{{t}}"}`,
			data: `t: 'a "quoted" <x>'`,
			want: `<div title="a &#34;quoted&#34; &lt;x&gt;"></div>`,
		},
		{name: "numeric attribute", tmpl: "td: {colspan: 2}", want: `<td colspan="2"></td>`},
		{name: "data attribute", tmpl: `span: {data-id: "{{id}}"}`, data: "id: 9", want: `<span data-id="9"></span>`},
		{name: "children scalar wrapped", tmpl: "p: {$children: hi}", want: "<p>hi</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rec := render(t, tt.tmpl, tt.data)
			assert.Equal(t, tt.want, got)
			assert.Empty(t, rec.Entries())
		})
	}
}

func TestRenderEvents(t *testing.T) {
	events := New(Options{}).Render(parse(t, "div: [{p: a}, {br: null}]"), nil)

	assert.Equal(t, []Event{
		{Kind: EventOpen, Depth: 0, Tag: "div"},
		{Kind: EventOpen, Depth: 1, Tag: "p"},
		{Kind: EventText, Depth: 2, Text: "a"},
		{Kind: EventClose, Depth: 1, Tag: "p"},
		{Kind: EventOpen, Depth: 1, Tag: "br", Void: true},
		{Kind: EventClose, Depth: 0, Tag: "div"},
	}, events)
}

func TestParentChain(t *testing.T) {
	tmpl := `
ul:
  $bind: list
  $children:
    - li: "{{name}} at {{..company}}[{{../../..company}}]"
`
	got, rec := render(t, tmpl, `{company: ACME, list: [{name: A}, {name: B}]}`)

	assert.Equal(t, "<ul><li>A at ACME[]</li><li>B at ACME[]</li></ul>", got)
	assert.Empty(t, rec.Errors())
}

func TestParentChainNested(t *testing.T) {
	tmpl := `
div:
  $bind: team
  $children:
    - ul:
        $bind: members
        $children:
          - li: "{{name}} / {{..title}} / {{../..org}}"
`
	data := `{org: Corp, team: {title: Core, members: [{name: Ada}]}}`
	got, _ := render(t, tmpl, data)

	assert.Equal(t, "<div><ul><li>Ada / Core / Corp</li></ul></div>", got)
}

func TestBinding(t *testing.T) {
	tests := []struct {
		name     string
		tmpl     string
		data     string
		want     string
		warnings int
		errors   int
	}{
		{
			name: "object binding",
			tmpl: `div: {$bind: user, class: "{{role}}", $children: ["{{name}} / {{..site}}"]}`,
			data: "{site: S, user: {name: Ada, role: admin}}",
			want: `<div class="admin">Ada / S</div>`,
		},
		{
			name: "array binding keeps attributes on the original scope",
			tmpl: `ul: {$bind: items, class: "{{kind}}", $children: [{li: "{{.}}"}]}`,
			data: "{kind: k, items: [a, b]}",
			want: `<ul class="k"><li>a</li><li>b</li></ul>`,
		},
		{
			name: "scalar binding",
			tmpl: `p: {$bind: title, $children: ["{{.}}"]}`,
			data: "title: Hi",
			want: "<p>Hi</p>",
		},
		{
			name: "missing binding",
			tmpl: `p: {$bind: nope, $children: ["[{{.}}]"]}`,
			want: "<p>[]</p>",
		},
		{
			name: "identity binding on array root",
			tmpl: `ol: {$bind: ".", $children: [{li: "{{.}}"}]}`,
			data: "[x, y]",
			want: "<ol><li>x</li><li>y</li></ol>",
		},
		{
			name: "filter",
			tmpl: `ul: {$bind: products, $filter: {$check: price, "$<": 500}, $children: [{li: "{{name}}"}]}`,
			data: "products: [{name: A, price: 100}, {name: B, price: 900}, {name: C, price: 300}]",
			want: "<ul><li>A</li><li>C</li></ul>",
		},
		{
			name: "empty filter result keeps container",
			tmpl: `ul: {$bind: products, $filter: {$check: price, "$<": 1}, $children: [{li: "{{name}}"}]}`,
			data: "products: [{name: A, price: 100}]",
			want: "<ul></ul>",
		},
		{
			name: "filter with membership",
			tmpl: `ul: {$bind: users, $filter: {$check: role, $in: [admin, owner]}, $children: [{li: "{{name}}"}]}`,
			data: "users: [{name: A, role: admin}, {name: B, role: guest}, {name: C, role: owner}]",
			want: "<ul><li>A</li><li>C</li></ul>",
		},
		{
			name: "implicit repeat",
			tmpl: `ul: [{li: {$bind: ".", $children: ["{{name}}"]}}]`,
			data: "[{name: A}, {name: B}]",
			want: "<ul><li>A</li><li>B</li></ul>",
		},
		{
			name: "implicit repeat with filter",
			tmpl: `ul: [{li: {$bind: ".", $filter: {$check: active}, $children: ["{{name}}"]}}]`,
			data: "[{name: A, active: true}, {name: B, active: false}]",
			want: "<ul><li>A</li></ul>",
		},
		{
			name:   "bind parent reference is fatal",
			tmpl:   `div: [{p: {$bind: "..x", $children: [a]}}, {p: ok}]`,
			want:   "<div><p>ok</p></div>",
			errors: 1,
		},
		{
			name:   "bind interpolation is fatal",
			tmpl:   `div: [{p: {$bind: "{{x}}", $children: [a]}}, {p: ok}]`,
			want:   "<div><p>ok</p></div>",
			errors: 1,
		},
		{
			name:   "non-string bind is fatal",
			tmpl:   `div: [{p: {$bind: 3, $children: [a]}}, {p: ok}]`,
			want:   "<div><p>ok</p></div>",
			errors: 1,
		},
		{
			name:     "filter without bind",
			tmpl:     `p: {$filter: {$check: x}, $children: [a]}`,
			want:     "<p>a</p>",
			warnings: 1,
		},
		{
			name:     "filter on object binding",
			tmpl:     `p: {$bind: user, $filter: {$check: x}, $children: ["{{name}}"]}`,
			data:     "user: {name: Ada}",
			want:     "<p>Ada</p>",
			warnings: 1,
		},
		{
			name:   "malformed filter is fatal",
			tmpl:   `div: [{ul: {$bind: items, $filter: nope}}, {p: ok}]`,
			data:   "items: [1]",
			want:   "<div><p>ok</p></div>",
			errors: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rec := render(t, tt.tmpl, tt.data)
			assert.Equal(t, tt.want, got)
			assert.Len(t, rec.Warnings(), tt.warnings, "warnings: %v", rec.Warnings())
			assert.Len(t, rec.Errors(), tt.errors, "errors: %v", rec.Errors())
		})
	}
}

func TestConditional(t *testing.T) {
	rangeTmpl := `$if: {$check: age, "$>=": 18, "$<=": 65, $then: {p: "yes"}, $else: {p: "no"}}`
	for age, want := range map[int]string{18: "yes", 40: "yes", 65: "yes", 17: "no", 66: "no"} {
		got, _ := render(t, rangeTmpl, fmt.Sprintf("age: %d", age))
		assert.Equal(t, "<p>"+want+"</p>", got, "age %d", age)
	}

	orTmpl := `$if: {$check: age, "$<": 18, "$>": 65, $join: OR, $then: {p: "yes"}, $else: {p: "no"}}`
	got, _ := render(t, orTmpl, "age: 70")
	assert.Equal(t, "<p>yes</p>", got)
	got, _ = render(t, orTmpl, "age: 30")
	assert.Equal(t, "<p>no</p>", got)

	tests := []struct {
		name     string
		tmpl     string
		data     string
		want     string
		warnings int
		errors   int
	}{
		{name: "truthy", tmpl: `$if: {$check: admin, $then: {p: allowed}, $else: {p: denied}}`, data: "admin: true", want: "<p>allowed</p>"},
		{name: "falsy", tmpl: `$if: {$check: admin, $then: {p: allowed}, $else: {p: denied}}`, data: "admin: false", want: "<p>denied</p>"},
		{name: "no else", tmpl: `$if: {$check: admin, $then: {p: allowed}}`, data: "admin: 0", want: ""},
		{name: "empty string falsy", tmpl: `$if: {$check: s, $then: {p: allowed}, $else: {p: denied}}`, data: `s: ""`, want: "<p>denied</p>"},
		{name: "not", tmpl: `$if: {$check: admin, $not: true, $then: {p: guest}}`, data: "admin: false", want: "<p>guest</p>"},
		{name: "equality", tmpl: `$if: {$check: role, "$=": admin, $then: {p: allowed}}`, data: "role: admin", want: "<p>allowed</p>"},
		{name: "text branch", tmpl: `$if: {$check: x, $then: "value {{x}}"}`, data: "x: 1", want: "value 1"},
		{name: "nested scope", tmpl: `ul: {$bind: items, $children: [{$if: {$check: shown, $then: {li: "{{name}}"}}}]}`,
			data: "items: [{name: A, shown: true}, {name: B}]", want: "<ul><li>A</li></ul>"},
		{
			name:   "missing check is fatal",
			tmpl:   `div: [{$if: {$then: {p: x}}}, {p: ok}]`,
			want:   "<div><p>ok</p></div>",
			errors: 1,
		},
		{
			name:   "shorthand is fatal",
			tmpl:   `div: [{$if: "x"}, {p: ok}]`,
			want:   "<div><p>ok</p></div>",
			errors: 1,
		},
		{
			name:   "array branch is fatal",
			tmpl:   `div: [{$if: {$check: x, $then: [{p: a}, {p: b}]}}, {p: ok}]`,
			data:   "x: true",
			want:   "<div><p>ok</p></div>",
			errors: 1,
		},
		{
			name:   "check with parent reference is fatal",
			tmpl:   `div: [{$if: {$check: "..x", $then: {p: a}}}, {p: ok}]`,
			want:   "<div><p>ok</p></div>",
			errors: 1,
		},
		{
			name:   "invalid join is fatal",
			tmpl:   `div: [{$if: {$check: x, $join: XOR, $then: {p: a}}}, {p: ok}]`,
			want:   "<div><p>ok</p></div>",
			errors: 1,
		},
		{
			name:     "unknown key is a warning",
			tmpl:     `$if: {$check: x, class: c, $then: {p: y}}`,
			data:     "x: 1",
			want:     "<p>y</p>",
			warnings: 1,
		},
		{
			name:     "children key is a warning",
			tmpl:     `$if: {$check: x, $children: [{p: z}], $then: {p: y}}`,
			data:     "x: 1",
			want:     "<p>y</p>",
			warnings: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rec := render(t, tt.tmpl, tt.data)
			assert.Equal(t, tt.want, got)
			assert.Len(t, rec.Warnings(), tt.warnings, "warnings: %v", rec.Warnings())
			assert.Len(t, rec.Errors(), tt.errors, "errors: %v", rec.Errors())
		})
	}
}

func TestConditionalAttributes(t *testing.T) {
	tmpl := `div: {class: {$check: active, $then: is-on, $else: is-off}, title: {$check: tip, $then: "{{tip}}"}}`

	got, rec := render(t, tmpl, "{active: true, tip: hello}")
	assert.Equal(t, `<div class="is-on" title="hello"></div>`, got)
	assert.Empty(t, rec.Entries())

	got, _ = render(t, tmpl, "active: false")
	assert.Equal(t, `<div class="is-off"></div>`, got, "attribute without a selected branch is omitted")

	got, rec = render(t, `div: {class: {$check: x, $then: [a, b]}}`, "x: 1")
	assert.Equal(t, "<div></div>", got)
	assert.Len(t, rec.Warnings(), 1)

	got, rec = render(t, `div: {class: {$check: "..x", $then: a}}`, "")
	assert.Equal(t, "<div></div>", got)
	assert.Len(t, rec.Warnings(), 1)
	assert.Empty(t, rec.Errors(), "invalid attribute conditionals only drop the attribute")

	got, _ = render(t, `div: {style: {color: {$check: warn, $then: red, $else: green}}}`, "warn: true")
	assert.Equal(t, `<div style="color: red"></div>`, got)
}

func TestComment(t *testing.T) {
	tests := []struct {
		name   string
		tmpl   string
		data   string
		want   string
		errors int
	}{
		{name: "text", tmpl: `$comment: "note {{x}}"`, data: "x: <y>", want: "<!-- note &lt;y&gt; -->"},
		{name: "list", tmpl: `$comment: [{p: a}]`, want: "<!-- <p>a</p> -->"},
		{name: "children", tmpl: `$comment: {$children: [{p: a}, b]}`, want: "<!-- <p>a</p>b -->"},
		{name: "nested", tmpl: `$comment: [{p: a}, {$comment: inner}]`, want: "<!-- <p>a</p> -->", errors: 1},
		{name: "deeply nested", tmpl: `$comment: [{div: [{$comment: x}, {span: y}]}]`, want: "<!-- <div><span>y</span></div> -->", errors: 1},
		{name: "siblings", tmpl: `[{$comment: a}, {$comment: b}]`, want: "<!-- a --><!-- b -->"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rec := render(t, tt.tmpl, tt.data)
			assert.Equal(t, tt.want, got)
			require.Len(t, rec.Errors(), tt.errors)
			if tt.errors > 0 {
				assert.Contains(t, codes(rec), errors.ErrCodeNestedComment)
			}
		})
	}
}

func TestSecurity(t *testing.T) {
	t.Run("disallowed tag", func(t *testing.T) {
		got, rec := render(t, "script: x", "")
		assert.Equal(t, "", got)
		require.Len(t, rec.Errors(), 1)
		assert.Equal(t, `Tag "script" is not allowed`, rec.Errors()[0])
	})

	t.Run("disallowed tag keeps siblings", func(t *testing.T) {
		got, rec := render(t, "div: [{script: x}, {iframe: y}, {p: ok}]", "")
		assert.Equal(t, "<div><p>ok</p></div>", got)
		assert.Len(t, rec.Errors(), 2)
	})

	tests := []struct {
		name string
		tmpl string
		data string
		want string
		code string
	}{
		{
			name: "javascript href",
			tmpl: `a: {href: "javascript:alert(1)", $children: [Click]}`,
			want: "<a>Click</a>",
			code: errors.ErrCodeURLBlocked,
		},
		{
			name: "interpolated javascript href",
			tmpl: `a: {href: "{{u}}", class: x, $children: [Click]}`,
			data: `u: "JaVaScRiPt:alert(1)"`,
			want: `<a class="x">Click</a>`,
			code: errors.ErrCodeURLBlocked,
		},
		{
			name: "data src",
			tmpl: `img: {src: "data:text/html;base64,AAAA", alt: x}`,
			want: `<img alt="x">`,
			code: errors.ErrCodeURLBlocked,
		},
		{
			name: "event handler attribute",
			tmpl: `div: {onclick: "x", class: c}`,
			want: `<div class="c"></div>`,
			code: errors.ErrCodeAttributeNotAllowed,
		},
		{
			name: "tag specific attribute on wrong tag",
			tmpl: `div: {href: "/x"}`,
			want: `<div></div>`,
			code: errors.ErrCodeAttributeNotAllowed,
		},
		{
			name: "reserved key on ordinary tag",
			tmpl: `div: {$foo: 1}`,
			want: `<div></div>`,
			code: errors.ErrCodeInvalidAttribute,
		},
		{
			name: "array attribute value",
			tmpl: `div: {class: [a, b]}`,
			want: `<div></div>`,
			code: errors.ErrCodeInvalidAttribute,
		},
		{
			name: "blocked style url",
			tmpl: `div: {style: {background: "url(javascript:alert(1))", color: red}}`,
			want: `<div style="color: red"></div>`,
			code: errors.ErrCodeStyleBlocked,
		},
		{
			name: "style emptied entirely",
			tmpl: `div: {style: {background: "url(https://evil.example/x)"}}`,
			want: `<div></div>`,
			code: errors.ErrCodeStyleBlocked,
		},
		{
			name: "style injection",
			tmpl: `div: {style: {color: "red; background: blue"}}`,
			want: `<div style="color: red"></div>`,
			code: errors.ErrCodeStyleInjection,
		},
		{
			name: "interpolated style injection",
			tmpl: `div: {style: {color: "{{c}}"}}`,
			data: `c: "red;position:fixed"`,
			want: `<div style="color: red"></div>`,
			code: errors.ErrCodeStyleInjection,
		},
		{
			name: "interpolated style injection behind a broken string",
			tmpl: `div: {style: {font-family: "{{f}}", color: red}, $children: [x]}`,
			data: `f: "'a\n; position: fixed; top: 0; left: 0; width: 100%"`,
			want: `<div style="color: red">x</div>`,
			code: errors.ErrCodeStyleInjection,
		},
		{
			name: "interpolated style injection inside quotes",
			tmpl: `div: {style: {font-family: "{{f}}"}, $children: [x]}`,
			data: `f: "'a; position: fixed"`,
			want: `<div>x</div>`,
			code: errors.ErrCodeStyleInjection,
		},
		{
			name: "invalid style property",
			tmpl: `div: {style: {Color: red, font-size: 12px}}`,
			want: `<div style="font-size: 12px"></div>`,
			code: errors.ErrCodeStyleInvalid,
		},
		{
			name: "blocked property access",
			tmpl: `p: "{{constructor}}"`,
			data: "constructor: x",
			want: "<p></p>",
			code: errors.ErrCodePropertyBlocked,
		},
		{
			name: "void children dropped",
			tmpl: `br: {$children: [x]}`,
			want: "<br>",
			code: errors.ErrCodeVoidChildren,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rec := render(t, tt.tmpl, tt.data)
			assert.Equal(t, tt.want, got)
			assert.Empty(t, rec.Errors())
			require.NotEmpty(t, rec.Warnings())
			assert.Contains(t, codes(rec), tt.code)
		})
	}

	t.Run("style must be an object", func(t *testing.T) {
		for _, style := range []string{`"color: red"`, "[a]", "5"} {
			got, rec := render(t, fmt.Sprintf("div: [{p: {style: %s, $children: [x]}}, {p: ok}]", style), "")
			assert.Equal(t, "<div><p>ok</p></div>", got, style)
			require.Len(t, rec.Errors(), 1, style)
			assert.Contains(t, codes(rec), errors.ErrCodeStyleInvalid)
		}
	})

	t.Run("numeric style value", func(t *testing.T) {
		got, rec := render(t, `div: {style: {z-index: 2, opacity: 0.5}}`, "")
		assert.Equal(t, `<div style="z-index: 2; opacity: 0.5"></div>`, got)
		assert.Empty(t, rec.Entries())
	})
}

func TestMaxDepth(t *testing.T) {
	rec := logging.NewRecorder()
	got := renderWith(t, Options{Diagnostics: rec, MaxDepth: 1}, "", "div: [{div: [{div: [x]}]}]", "")

	assert.Equal(t, "<div><div></div></div>", got)
	assert.Contains(t, codes(rec), errors.ErrCodeMaxDepth)

	var deep any = "leaf"
	for i := 0; i < 500; i++ {
		deep = map[string]any{"div": []any{deep}}
	}
	rec.Reset()
	events := New(Options{Diagnostics: rec}).Render(deep, nil)
	assert.NotEmpty(t, events)
	assert.Contains(t, codes(rec), errors.ErrCodeMaxDepth)
}

func TestFallback(t *testing.T) {
	opts := Options{Fallback: func(path string, _ any, _ []any) (any, bool) {
		if path == "site.name" {
			return "Treebark", true
		}
		return nil, false
	}}

	got := renderWith(t, opts, "", `p: "{{site.name}} {{title}}"`, "title: Home")
	assert.Equal(t, "<p>Treebark Home</p>", got)
}

func TestGoValues(t *testing.T) {
	type item struct {
		Name  string `json:"name"`
		Price float64
	}
	tmpl := map[string]any{
		"ul": map[string]any{
			"$bind":     "items",
			"$children": []any{map[string]any{"li": "{{name}}: {{Price}}"}},
		},
	}
	data := map[string]any{"items": []item{{Name: "A", Price: 1.25}, {Name: "B", Price: 3}}}

	got := StringFormatter{}.Format(New(Options{}).Render(tmpl, data))
	assert.Equal(t, "<ul><li>A: 1.25</li><li>B: 3</li></ul>", got)
}

func TestIndent(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		data string
		want string
	}{
		{
			name: "nested",
			tmpl: "div:\n  $children:\n    - h1: Title\n    - p: Content\n    - ul: []",
			want: "<div>\n  <h1>Title</h1>\n  <p>Content</p>\n  <ul></ul>\n</div>",
		},
		{
			name: "lone text child stays inline",
			tmpl: `pre: "a\n  b"`,
			want: "<pre>a\n  b</pre>",
		},
		{
			name: "mixed children",
			tmpl: `p: ["Line one\nLine two", {br: null}, after]`,
			want: "<p>\n  Line one\n  Line two\n  <br>\n  after\n</p>",
		},
		{
			name: "interpolated newlines",
			tmpl: `div: [{strong: x}, "{{body}}"]`,
			data: `body: "a\nb"`,
			want: "<div>\n  <strong>x</strong>\n  a\n  b\n</div>",
		},
		{
			name: "root fragment",
			tmpl: "[{p: a}, {p: b}]",
			want: "<p>a</p>\n<p>b</p>",
		},
		{
			name: "conditional at same depth",
			tmpl: `div: [{$if: {$check: x, $then: {p: y}}}]`,
			data: "x: true",
			want: "<div>\n  <p>y</p>\n</div>",
		},
		{
			name: "comment",
			tmpl: `div: [{$comment: c}, {p: [{span: a}]}]`,
			want: "<div>\n  <!-- c -->\n  <p>\n    <span>a</span>\n  </p>\n</div>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderWith(t, Options{}, "  ", tt.tmpl, tt.data)
			assert.Equal(t, tt.want, got)
		})
	}

	got := renderWith(t, Options{}, "\t", "ul: [{li: a}]", "")
	assert.Equal(t, "<ul>\n\t<li>a</li>\n</ul>", got)
}

func TestContainer(t *testing.T) {
	events := New(Options{}).Render(parse(t, "p: x"), nil)

	assert.Equal(t, "<p>x</p>", StringFormatter{}.Format(Container{}.Wrap(events)))
	assert.Equal(t,
		`<div data-treebark-root="" style="contain: content; isolation: isolate"><p>x</p></div>`,
		StringFormatter{}.Format(Container{Contain: true}.Wrap(events)))
	assert.Equal(t,
		`<div data-treebark-root=""><template shadowrootmode="open"><p>x</p></template></div>`,
		StringFormatter{}.Format(Container{ShadowRoot: true}.Wrap(events)))

	wrapped := Container{Contain: true, ShadowRoot: true}.Wrap(events)
	assert.Equal(t, 2, wrapped[2].Depth, "wrapped content is shifted below the host and template")
	assert.Equal(t, 0, events[0].Depth, "wrapping does not modify the input")
}

func TestFormat(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{value: nil, want: ""},
		{value: "s", want: "s"},
		{value: true, want: "true"},
		{value: false, want: "false"},
		{value: 42, want: "42"},
		{value: int64(-7), want: "-7"},
		{value: uint8(5), want: "5"},
		{value: 1.5, want: "1.5"},
		{value: 3.0, want: "3"},
		{value: float32(0.25), want: "0.25"},
		{value: 1e6, want: "1000000"},
		{value: math.NaN(), want: "NaN"},
		{value: math.Inf(-1), want: "-Infinity"},
		{value: []any{1}, want: ""},
		{value: map[string]any{"a": 1}, want: ""},
		{value: tree.NewObject(), want: ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(tt.value), "%#v", tt.value)
	}
}

func TestInterpolationIsLinear(t *testing.T) {
	evil := strings.Repeat("{{", 20000) + strings.Repeat("a", 20000) + strings.Repeat("}", 3)
	events := New(Options{}).Render(map[string]any{"p": evil}, nil)
	out := StringFormatter{}.Format(events)
	assert.True(t, strings.HasPrefix(out, "<p>{{"))
}

func TestRendererConcurrentUse(t *testing.T) {
	r := New(Options{})
	tmpl := parse(t, `ul: {$bind: items, $children: [{li: "{{.}} of {{..total}}"}]}`)
	data := parse(t, "{total: 3, items: [a, b, c]}")
	want := "<ul><li>a of 3</li><li>b of 3</li><li>c of 3</li></ul>"

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, StringFormatter{}.Format(r.Render(tmpl, data)))
		}()
	}
	wg.Wait()
}
