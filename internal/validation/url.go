package validation

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// allowedSchemes lists the URL protocols a rendered href or src may use.
// Relative and protocol-relative URLs carry no scheme and are always allowed.
var allowedSchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"mailto": true,
	"tel":    true,
}

// ValidateURL checks the protocol of a URL-bearing attribute value.
// javascript:, data:, vbscript:, file: and any unknown scheme are rejected.
func ValidateURL(rawURL string) error {
	// Browsers ignore ASCII whitespace and control characters inside a
	// scheme ("java\tscript:"), so strip them before looking at it.
	compact := stripControl(rawURL)
	if compact == "" {
		return nil
	}

	if strings.HasPrefix(compact, "//") {
		return nil
	}

	colon := strings.IndexByte(compact, ':')
	if colon < 0 {
		return nil
	}

	// A '/', '?' or '#' before the first colon makes it a relative reference.
	if cut := strings.IndexAny(compact, "/?#"); cut >= 0 && cut < colon {
		return nil
	}

	scheme := foldCase(compact[:colon])
	if !validScheme(scheme) {
		return fmt.Errorf("invalid URL scheme %q", scheme)
	}
	if !allowedSchemes[scheme] {
		return fmt.Errorf("URL protocol %q is not allowed", scheme+":")
	}

	return nil
}

// SchemeAllowed reports whether scheme (without the colon) may be rendered.
func SchemeAllowed(scheme string) bool {
	return allowedSchemes[foldCase(scheme)]
}

func validScheme(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}

	return true
}

func stripControl(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r <= 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}

// foldCase applies Unicode case folding. Casers are stateful, so each call
// gets its own.
func foldCase(s string) string {
	return cases.Fold().String(s)
}
