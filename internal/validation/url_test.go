package validation

import (
	"strings"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		expectErr bool
	}{
		// Allowed protocols
		{name: "http URL", url: "http://example.com", expectErr: false},
		{name: "https URL", url: "https://example.com/path?q=1&r=2#frag", expectErr: false},
		{name: "mailto", url: "mailto:ada@example.com", expectErr: false},
		{name: "tel", url: "tel:+15551234567", expectErr: false},
		{name: "uppercase scheme", url: "HTTPS://example.com", expectErr: false},

		// Relative references
		{name: "empty", url: "", expectErr: false},
		{name: "path relative", url: "about/team", expectErr: false},
		{name: "root relative", url: "/docs", expectErr: false},
		{name: "protocol relative", url: "//cdn.example.com/a.png", expectErr: false},
		{name: "fragment", url: "#top", expectErr: false},
		{name: "query with colon", url: "?time=10:30", expectErr: false},
		{name: "path with colon", url: "/a:b", expectErr: false},

		// Blocked protocols
		{name: "javascript", url: "javascript:alert(1)", expectErr: true},
		{name: "javascript mixed case", url: "JaVaScRiPt:alert(1)", expectErr: true},
		{name: "javascript with tab", url: "java\tscript:alert(1)", expectErr: true},
		{name: "javascript with newline", url: "java\nscript:alert(1)", expectErr: true},
		{name: "javascript leading space", url: "  javascript:alert(1)", expectErr: true},
		{name: "data", url: "data:text/html,<script>alert(1)</script>", expectErr: true},
		{name: "vbscript", url: "vbscript:msgbox(1)", expectErr: true},
		{name: "file", url: "file:///etc/passwd", expectErr: true},
		{name: "unknown scheme", url: "ftp://example.com", expectErr: true},
		{name: "invalid scheme characters", url: "1http:alert(1)", expectErr: true},
		{name: "entity before colon is relative", url: "&#106;avascript:alert(1)", expectErr: false},

		// Edge cases
		{name: "very long valid URL", url: "https://example.com/" + strings.Repeat("a", 2000), expectErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.expectErr && err == nil {
				t.Errorf("ValidateURL(%q) expected error, got nil", tt.url)
			}
			if !tt.expectErr && err != nil {
				t.Errorf("ValidateURL(%q) unexpected error: %v", tt.url, err)
			}
		})
	}
}

func TestValidateURLMessage(t *testing.T) {
	err := ValidateURL("javascript:alert(1)")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), `"javascript:"`) {
		t.Errorf("error should name the protocol, got %q", err.Error())
	}
}

func TestSchemeAllowed(t *testing.T) {
	if !SchemeAllowed("HTTP") {
		t.Error("http should be allowed")
	}
	if SchemeAllowed("data") {
		t.Error("data should not be allowed")
	}
}
