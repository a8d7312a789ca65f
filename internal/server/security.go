package server

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/treebark/internal/config"
	"github.com/conneroisu/treebark/internal/logging"
	"github.com/conneroisu/treebark/internal/validation"
)

// SecurityConfig holds the HTTP hardening applied to every response.
type SecurityConfig struct {
	CSP                 *CSPConfig
	XFrameOptions       string
	XContentTypeNoSniff bool
	ReferrerPolicy      string
	// AllowedOrigins may issue state-changing requests besides the server's
	// own origin.
	AllowedOrigins []string
	// EnableNonce generates a per-request script nonce and exposes it through
	// templ.GetNonce.
	EnableNonce bool
	Logger      logging.Logger
}

// CSPConfig lists Content-Security-Policy directives.
type CSPConfig struct {
	DefaultSrc     []string
	ScriptSrc      []string
	StyleSrc       []string
	ImgSrc         []string
	MediaSrc       []string
	ConnectSrc     []string
	ObjectSrc      []string
	FrameAncestors []string
	BaseURI        []string
	FormAction     []string
	ReportURI      string
}

// DefaultSecurityConfig returns the policy for previewing rendered templates.
// Rendered markup carries inline style attributes and remote images, so
// style-src allows inline styles while scripts need the nonce.
func DefaultSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		CSP: &CSPConfig{
			DefaultSrc:     []string{"'self'"},
			ScriptSrc:      []string{"'self'"},
			StyleSrc:       []string{"'self'", "'unsafe-inline'"},
			ImgSrc:         []string{"'self'", "data:", "https:"},
			MediaSrc:       []string{"'self'", "https:"},
			ConnectSrc:     []string{"'self'", "ws:", "wss:"},
			ObjectSrc:      []string{"'none'"},
			FrameAncestors: []string{"'none'"},
			BaseURI:        []string{"'self'"},
			FormAction:     []string{"'self'"},
			ReportURI:      "/api/csp-report",
		},
		XFrameOptions:       "DENY",
		XContentTypeNoSniff: true,
		ReferrerPolicy:      "strict-origin-when-cross-origin",
		EnableNonce:         true,
	}
}

// SecurityConfigFromAppConfig derives the policy from application config.
func SecurityConfigFromAppConfig(cfg *config.Config, logger logging.Logger) *SecurityConfig {
	secConfig := DefaultSecurityConfig()
	secConfig.AllowedOrigins = cfg.Server.AllowedOrigins
	secConfig.Logger = logger

	return secConfig
}

// generateNonce generates a cryptographically secure random nonce
func generateNonce() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	return base64.StdEncoding.EncodeToString(bytes), nil
}

// SecurityMiddleware applies headers, attaches the script nonce, and rejects
// cross-origin state-changing requests.
func SecurityMiddleware(secConfig *SecurityConfig) func(http.Handler) http.Handler {
	if secConfig == nil {
		secConfig = DefaultSecurityConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var nonce string
			if secConfig.EnableNonce {
				var err error
				nonce, err = generateNonce()
				if err != nil {
					if secConfig.Logger != nil {
						secConfig.Logger.Error(r.Context(), err, "Failed to generate CSP nonce")
					}
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
				r = r.WithContext(templ.WithNonce(r.Context(), nonce))
			}

			applySecurityHeaders(w, secConfig, nonce)

			if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Method != http.MethodOptions {
				if !sameOrAllowedOrigin(r, secConfig.AllowedOrigins) {
					if secConfig.Logger != nil {
						secConfig.Logger.Warn(r.Context(), nil, "Security: rejected cross-origin request",
							"origin", r.Header.Get("Origin"),
							"path", r.URL.Path,
							"ip", getClientIP(r))
					}
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// sameOrAllowedOrigin accepts requests without browser origin headers, from
// the server's own host, or from a configured origin.
func sameOrAllowedOrigin(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		referer := r.Header.Get("Referer")
		if referer == "" {
			return true
		}
		refererURL, err := url.Parse(referer)
		if err != nil {
			return false
		}
		origin = fmt.Sprintf("%s://%s", refererURL.Scheme, refererURL.Host)
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if originURL.Host == r.Host && (originURL.Scheme == "http" || originURL.Scheme == "https") {
		return true
	}
	for _, a := range allowed {
		if a == "*" {
			return true
		}
	}

	return validation.ValidateOrigin(origin, allowed) == nil
}

func applySecurityHeaders(w http.ResponseWriter, config *SecurityConfig, nonce string) {
	h := w.Header()
	if config.CSP != nil {
		h.Set("Content-Security-Policy", buildCSPHeader(config.CSP, nonce))
	}
	if config.XFrameOptions != "" {
		h.Set("X-Frame-Options", config.XFrameOptions)
	}
	if config.XContentTypeNoSniff {
		h.Set("X-Content-Type-Options", "nosniff")
	}
	if config.ReferrerPolicy != "" {
		h.Set("Referrer-Policy", config.ReferrerPolicy)
	}
	h.Set("Cross-Origin-Opener-Policy", "same-origin")
}

// buildCSPHeader constructs the Content-Security-Policy header value
func buildCSPHeader(csp *CSPConfig, nonce string) string {
	var directives []string

	add := func(name string, values []string) {
		if len(values) > 0 {
			directives = append(directives, name+" "+strings.Join(values, " "))
		}
	}

	scriptSrc := csp.ScriptSrc
	if nonce != "" {
		scriptSrc = make([]string, 0, len(csp.ScriptSrc)+1)
		for _, v := range csp.ScriptSrc {
			if v != "'unsafe-inline'" && v != "'unsafe-eval'" {
				scriptSrc = append(scriptSrc, v)
			}
		}
		scriptSrc = append(scriptSrc, fmt.Sprintf("'nonce-%s'", nonce))
	}

	add("default-src", csp.DefaultSrc)
	add("script-src", scriptSrc)
	add("style-src", csp.StyleSrc)
	add("img-src", csp.ImgSrc)
	add("media-src", csp.MediaSrc)
	add("connect-src", csp.ConnectSrc)
	add("object-src", csp.ObjectSrc)
	add("frame-ancestors", csp.FrameAncestors)
	add("base-uri", csp.BaseURI)
	add("form-action", csp.FormAction)
	if csp.ReportURI != "" {
		directives = append(directives, "report-uri "+csp.ReportURI)
	}

	return strings.Join(directives, "; ")
}

// CSPViolationReport represents a CSP violation report
type CSPViolationReport struct {
	CSPReport struct {
		DocumentURI       string `json:"document-uri"`
		ViolatedDirective string `json:"violated-directive"`
		BlockedURI        string `json:"blocked-uri"`
		SourceFile        string `json:"source-file"`
		LineNumber        int    `json:"line-number"`
	} `json:"csp-report"`
}

// CSPViolationHandler logs browser CSP violation reports.
func CSPViolationHandler(logger logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

		var report CSPViolationReport
		if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
			if logger != nil {
				logger.Warn(r.Context(), err, "CSP: failed to parse violation report", "ip", getClientIP(r))
			}
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}

		if logger != nil {
			logger.Warn(r.Context(), nil, "CSP: policy violation",
				"document_uri", logging.TruncateForLog(report.CSPReport.DocumentURI),
				"violated_directive", report.CSPReport.ViolatedDirective,
				"blocked_uri", logging.TruncateForLog(report.CSPReport.BlockedURI),
				"source_file", logging.TruncateForLog(report.CSPReport.SourceFile),
				"line_number", report.CSPReport.LineNumber)
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
