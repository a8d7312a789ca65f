// Package docs describes treebark, a renderer for declarative HTML template
// trees.
//
// Treebark turns templates written as plain YAML or JSON trees into HTML,
// either as a string or as a DOM fragment. Templates can come from untrusted
// sources: data is only ever inserted as escaped text, and every tag,
// attribute, URL and style passes through an allowlist.
//
// # Key Features
//
//   - Template trees: tags are single-key objects, text is a string
//   - Interpolation: {{path}} markers resolved against data and ancestors
//   - Iteration: $bind over arrays, narrowed with $filter
//   - Conditionals: $if with $check, comparison operators and $then/$else
//   - Output: indented or compact HTML text, or golang.org/x/net/html nodes
//   - Isolation: optional CSS-contained host element and shadow root
//   - Markdown: ```treebark fences rendered inside goldmark documents
//
// # Quick Start
//
//	// Render a template to stdout
//	treebark render page.yaml --data site.json
//
//	// Report blocked or malformed nodes
//	treebark validate templates/*.yaml --strict
//
//	// Render treebark fences inside Markdown
//	treebark markdown README.md
//
//	// Live-reloading preview of a template directory
//	treebark serve ./templates
//
// # Library Use
//
//	in, err := treebark.ParseDocument(src)
//	if err != nil {
//		return err
//	}
//	html := treebark.RenderString(in, &treebark.Options{Indent: "  "})
//
// # Configuration
//
// The CLI reads .treebark.yml, TREEBARK_* environment variables and flags:
//
//	render:
//	  indent: 2
//	  max_depth: 128
//	  contain: true
//	server:
//	  host: localhost
//	  port: 8080
//	  root: ./templates
//	  allowed_origins:
//	    - "http://localhost:3000"
//	watch:
//	  debounce: 300ms
//	logging:
//	  level: info
//	  format: text
package docs
