// Package validation provides the small input policies shared by the
// renderer, CLI, and preview server: URL protocol checks, template file
// names, and websocket origins.
package validation

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// TemplateExtensions lists the file extensions treated as template documents.
var TemplateExtensions = []string{".json", ".yaml", ".yml"}

// ValidateTemplateName validates a template file name requested relative to
// a served directory. It rejects traversal, absolute paths and separators
// that would escape the directory.
func ValidateTemplateName(name string) error {
	if name == "" {
		return fmt.Errorf("template name cannot be empty")
	}

	if strings.ContainsAny(name, "\x00\\") {
		return fmt.Errorf("template name contains invalid character: %q", name)
	}

	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return fmt.Errorf("absolute path not allowed: %s", name)
	}

	cleanPath := filepath.Clean(name)
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) ||
		strings.Contains(name, "..") {
		return fmt.Errorf("path traversal detected: %s", name)
	}

	return ValidateFileExtension(name, TemplateExtensions)
}

// ValidateOrigin validates a WebSocket origin for CSRF protection
func ValidateOrigin(origin string, allowedOrigins []string) error {
	if origin == "" {
		return fmt.Errorf("origin header is required")
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin format: %w", err)
	}

	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return fmt.Errorf("invalid origin scheme '%s': only http and https are allowed", originURL.Scheme)
	}

	for _, allowed := range allowedOrigins {
		if origin == allowed || originURL.Host == allowed {
			return nil
		}
	}

	return fmt.Errorf("origin '%s' is not in allowed origins list", origin)
}

// ValidateFileExtension validates file extensions against an allowlist
func ValidateFileExtension(filename string, allowedExtensions []string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return fmt.Errorf("file must have an extension")
	}

	for _, allowed := range allowedExtensions {
		if ext == strings.ToLower(allowed) {
			return nil
		}
	}

	return fmt.Errorf("file extension '%s' is not allowed", ext)
}

// IsTemplateFile reports whether path has a template document extension.
func IsTemplateFile(path string) bool {
	return ValidateFileExtension(path, TemplateExtensions) == nil
}
