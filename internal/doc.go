// Package internal contains the core implementation packages for treebark.
//
// This package follows Go's internal package convention. The public entry
// point is pkg/treebark; everything here backs it and the treebark CLI.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - tree: YAML/JSON decoding into ordered objects and tag-node helpers
//   - resolver: Path resolution for {{...}} interpolation, $bind and $check
//   - condition: $if and $filter predicate evaluation
//   - security: Tag, attribute, URL and style allowlists
//   - renderer: Tree walker emitting events, plus string and DOM formatters
//   - markdown: goldmark extension for ```treebark fences
//   - errors: Structured render errors with codes and severities
//   - logging: slog-based process logger and render diagnostics sinks
//   - config: Viper configuration with validation
//   - watcher: fsnotify monitoring with debouncing
//   - server: Preview server with live reload over WebSocket
//   - validation: URL, origin and file name checks shared across packages
//   - version: Build metadata
//
// # Data Flow
//
// A template is decoded by tree, walked by renderer with scope lookups going
// through resolver and condition, and every emitted tag or attribute is
// checked by security. The walker produces an event stream that the string
// and DOM formatters consume. Problems never abort a render; they are routed
// as diagnostics to a logging.Diagnostics sink.
//
// # Security Considerations
//
// Security is implemented at multiple layers:
//
//   - Text and attribute values are always escaped
//   - Only allowlisted tags and attributes are emitted
//   - URL attributes accept a fixed set of protocols
//   - Styles are structured objects checked per property and value
//   - The preview server sets a nonce-based CSP and checks origins
package internal
