// Package config provides configuration management for treebark using Viper
// for loading from files, environment variables, and command-line flags.
//
// Settings live in .treebark.yml or the file named by --config, and can be
// overridden with TREEBARK_<SECTION>_<KEY> environment variables. The
// configuration covers render defaults, the preview server, the file watcher,
// and process logging.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/treebark/internal/logging"
)

// Defaults applied when a key is not set.
const (
	DefaultMaxDepth = 128
	DefaultHost     = "localhost"
	DefaultPort     = 8080
	DefaultRoot     = "."
	DefaultDebounce = 300 * time.Millisecond
	DefaultLevel    = "info"
	DefaultFormat   = "text"

	// maxDepthLimit bounds max_depth so a config file cannot disable the
	// recursion guard.
	maxDepthLimit = 10000
)

type Config struct {
	Render  RenderConfig  `mapstructure:"render"  yaml:"render"  json:"render"`
	Server  ServerConfig  `mapstructure:"server"  yaml:"server"  json:"server"`
	Watch   WatchConfig   `mapstructure:"watch"   yaml:"watch"   json:"watch"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging" json:"logging"`
}

type RenderConfig struct {
	// Indent is the raw indent setting. Interpret it with
	// treebark.ParseIndentFlag.
	Indent     string `mapstructure:"indent"      yaml:"indent"      json:"indent"`
	MaxDepth   int    `mapstructure:"max_depth"   yaml:"max_depth"   json:"max_depth"`
	Contain    bool   `mapstructure:"contain"     yaml:"contain"     json:"contain"`
	ShadowRoot bool   `mapstructure:"shadow_root" yaml:"shadow_root" json:"shadow_root"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host"            yaml:"host"            json:"host"`
	Port           int      `mapstructure:"port"            yaml:"port"            json:"port"`
	Root           string   `mapstructure:"root"            yaml:"root"            json:"root"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce" json:"debounce"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads the global viper state into a validated Config.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Weak decoding turns a YAML boolean into "1" or "0"; keep the words so
	// the indent parser sees what the user wrote.
	if b, ok := viper.Get("render.indent").(bool); ok {
		config.Render.Indent = fmt.Sprintf("%t", b)
	}

	if !viper.IsSet("render.max_depth") {
		config.Render.MaxDepth = DefaultMaxDepth
	}
	if !viper.IsSet("server.host") {
		config.Server.Host = DefaultHost
	}
	if !viper.IsSet("server.port") {
		config.Server.Port = DefaultPort
	}
	if config.Server.Root == "" {
		config.Server.Root = DefaultRoot
	}
	if viper.IsSet("server.allowed_origins") && len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = viper.GetStringSlice("server.allowed_origins")
	}
	if !viper.IsSet("watch.debounce") {
		config.Watch.Debounce = DefaultDebounce
	}
	if config.Logging.Level == "" {
		config.Logging.Level = DefaultLevel
	}
	if config.Logging.Format == "" {
		config.Logging.Format = DefaultFormat
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateRenderConfig(&config.Render); err != nil {
		return fmt.Errorf("render config: %w", err)
	}

	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if config.Watch.Debounce < 0 {
		return fmt.Errorf("watch config: debounce %s is negative", config.Watch.Debounce)
	}

	if err := validateLoggingConfig(&config.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateRenderConfig(config *RenderConfig) error {
	if config.MaxDepth < 0 {
		return fmt.Errorf("max_depth %d is negative", config.MaxDepth)
	}
	if config.MaxDepth > maxDepthLimit {
		return fmt.Errorf("max_depth %d exceeds %d", config.MaxDepth, maxDepthLimit)
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}

	if config.Root != "" {
		if err := validatePath(config.Root); err != nil {
			return fmt.Errorf("invalid root '%s': %w", config.Root, err)
		}
	}

	return nil
}

func validateLoggingConfig(config *LoggingConfig) error {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		return err
	}

	switch config.Format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", config.Format)
	}
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
