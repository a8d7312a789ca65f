// Package cmd provides the treebark command-line interface.
//
// Configuration System:
//
//	Settings come from several sources with clear precedence:
//	1. Command-line flags (--config, --indent, --port, etc.) - highest priority
//	2. TREEBARK_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (TREEBARK_SERVER_PORT, etc.)
//	4. Configuration file (.treebark.yml) - lowest priority
//
// Environment Variables:
//
//	TREEBARK_CONFIG_FILE: Path to custom configuration file
//	TREEBARK_RENDER_INDENT: Default indentation
//	TREEBARK_SERVER_PORT: Override server port
//	And the rest following the TREEBARK_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/treebark/internal/config"
	"github.com/conneroisu/treebark/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "treebark",
	Short: "Render declarative template trees into safe HTML",
	Long: `Treebark renders templates written as YAML or JSON trees into HTML.
Every tag, attribute, URL and style passes through an allowlist, and data is
only ever inserted as escaped text.

Quick Start:
  treebark render page.yaml              Render a template to stdout
  treebark render page.yaml --data d.json
  treebark validate templates/*.yaml     Report blocked or malformed nodes
  treebark markdown README.md            Render treebark fences in Markdown
  treebark serve ./templates             Live-reloading preview server`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .treebark.yml, can also use TREEBARK_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig selects the config file and enables TREEBARK_ environment
// overrides. A missing config file is not an error.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("TREEBARK_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".treebark")
	}

	viper.SetEnvPrefix("TREEBARK")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// newLogger builds the process logger from config. Output goes to w, which
// is the command's stderr.
func newLogger(cfg *config.Config, w io.Writer) logging.Logger {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Logging.Format,
		Output: w,
	})
}
