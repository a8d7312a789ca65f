package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/conneroisu/treebark/internal/logging"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		writeIssues(&builder, vr.Errors)
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		writeIssues(&builder, vr.Warnings)
	}

	return builder.String()
}

func writeIssues(builder *strings.Builder, issues []ValidationError) {
	for _, issue := range issues {
		builder.WriteString(fmt.Sprintf("  - %s: %s\n", issue.Field, issue.Message))
		for _, suggestion := range issue.Suggestions {
			builder.WriteString(fmt.Sprintf("      hint: %s\n", suggestion))
		}
	}
}

// ValidateConfigWithDetails reports every problem in config, including
// settings that are legal but probably unintended.
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateRenderConfigDetails(&config.Render, result)
	validateServerConfigDetails(&config.Server, result)
	validateWatchConfigDetails(&config.Watch, result)
	validateLoggingConfigDetails(&config.Logging, result)

	result.Valid = !result.HasErrors()

	return result
}

func validateRenderConfigDetails(config *RenderConfig, result *ValidationResult) {
	switch {
	case config.MaxDepth < 0:
		result.Errors = append(result.Errors, ValidationError{
			Field:   "render.max_depth",
			Value:   config.MaxDepth,
			Message: fmt.Sprintf("max_depth %d is negative", config.MaxDepth),
			Suggestions: []string{
				fmt.Sprintf("Omit max_depth to use the default of %d", DefaultMaxDepth),
			},
		})
	case config.MaxDepth > maxDepthLimit:
		result.Errors = append(result.Errors, ValidationError{
			Field:   "render.max_depth",
			Value:   config.MaxDepth,
			Message: fmt.Sprintf("max_depth %d exceeds %d", config.MaxDepth, maxDepthLimit),
		})
	case config.MaxDepth > 0 && config.MaxDepth < 8:
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "render.max_depth",
			Value:   config.MaxDepth,
			Message: "max_depth is low enough to cut off ordinary documents",
			Suggestions: []string{
				"A table with a body and rows already nests four levels deep",
			},
		})
	}

	if config.ShadowRoot && !config.Contain {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "render.shadow_root",
			Value:   config.ShadowRoot,
			Message: "shadow_root without contain leaves layout containment off",
			Suggestions: []string{
				"Set render.contain: true to also apply CSS containment on the host",
			},
		})
	}
}

func validateServerConfigDetails(config *ServerConfig, result *ValidationResult) {
	if config.Port < 0 || config.Port > 65535 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.port",
			Value:   config.Port,
			Message: fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			Suggestions: []string{
				"Use a port between 1024-65535 for non-privileged access",
				"Port 0 allows system to assign an available port",
			},
		})
	} else if config.Port > 0 && config.Port < 1024 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "server.port",
			Value:   config.Port,
			Message: "port below 1024 requires elevated privileges",
		})
	}

	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.host",
				Value:   config.Host,
				Message: err.Error(),
				Suggestions: []string{
					"Use 'localhost' for local development",
					"Use a valid IP address or hostname",
				},
			})
		} else if config.Host == "0.0.0.0" || config.Host == "::" {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:   "server.host",
				Value:   config.Host,
				Message: "preview server will accept connections from other machines",
			})
		}
	}

	if config.Root != "" {
		if err := validatePath(config.Root); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.root",
				Value:   config.Root,
				Message: err.Error(),
			})
		}
	}

	for _, origin := range config.AllowedOrigins {
		if origin == "*" {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:   "server.allowed_origins",
				Value:   origin,
				Message: "wildcard origin lets any page open the live-reload socket",
			})
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.allowed_origins",
				Value:   origin,
				Message: fmt.Sprintf("origin %q is not an http(s) origin", origin),
				Suggestions: []string{
					"Origins look like http://localhost:8080",
				},
			})
		}
	}
}

func validateWatchConfigDetails(config *WatchConfig, result *ValidationResult) {
	if config.Debounce < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "watch.debounce",
			Value:   config.Debounce,
			Message: fmt.Sprintf("debounce %s is negative", config.Debounce),
		})
	} else if config.Debounce > 10*time.Second {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "watch.debounce",
			Value:   config.Debounce,
			Message: "long debounce delays every re-render",
			Suggestions: []string{
				fmt.Sprintf("The default is %s", DefaultDebounce),
			},
		})
	}
}

func validateLoggingConfigDetails(config *LoggingConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "logging.level",
			Value:   config.Level,
			Message: err.Error(),
		})
	}
	if config.Format != "" && config.Format != "text" && config.Format != "json" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "logging.format",
			Value:   config.Format,
			Message: fmt.Sprintf("unknown log format %q", config.Format),
			Suggestions: []string{
				"Use 'text' for terminals and 'json' for log collectors",
			},
		})
	}
}

var hostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

func validateHostname(host string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	if net.ParseIP(host) != nil {
		return nil
	}

	if !hostnamePattern.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}

	return nil
}
