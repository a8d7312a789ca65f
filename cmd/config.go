package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/treebark/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect treebark configuration",
	Long: `Inspect treebark configuration files and resolved settings.

Examples:
  treebark config show                 # Show the resolved configuration
  treebark config show --format json
  treebark config validate             # Validate .treebark.yml
  treebark config validate --file ci.yml --strict`,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a treebark configuration file for correctness and risky
settings such as wildcard origins or a public bind address.

Examples:
  treebark config validate
  treebark config validate --file config.yml --strict`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	Long: `Display the configuration after the config file, TREEBARK_ environment
variables, defaults and flags have been applied.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var (
	configFile   string
	configFormat string
	configStrict bool
)

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)

	configValidateCmd.Flags().
		StringVarP(&configFile, "file", "f", "", "Configuration file to validate (default: .treebark.yml)")
	configValidateCmd.Flags().BoolVar(&configStrict, "strict", false, "Treat warnings as errors")

	configShowCmd.Flags().StringVar(&configFormat, "format", "yaml", "Output format (yaml, json)")
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	targetFile := configFile
	if targetFile == "" {
		if _, err := os.Stat(".treebark.yml"); err != nil {
			return errors.New("no configuration file found. Use --file to specify a config file")
		}
		targetFile = ".treebark.yml"
	}
	if _, err := os.Stat(targetFile); os.IsNotExist(err) {
		return fmt.Errorf("configuration file %s does not exist", targetFile)
	}

	fmt.Fprintf(out, "Validating configuration file: %s\n", targetFile)

	v := viper.New()
	v.SetConfigFile(targetFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	validation := config.ValidateConfigWithDetails(&cfg)
	if validation.Valid && !validation.HasWarnings() {
		fmt.Fprintln(out, "✅ Configuration is valid!")
		return nil
	}

	fmt.Fprint(out, validation.String())

	if validation.HasErrors() {
		return fmt.Errorf("configuration validation failed with %d errors", len(validation.Errors))
	}
	if configStrict {
		return fmt.Errorf(
			"configuration validation failed in strict mode with %d warnings",
			len(validation.Warnings),
		)
	}

	fmt.Fprintf(out, "✅ Configuration is valid with %d warnings. Use --strict to treat warnings as errors.\n",
		len(validation.Warnings))

	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	view := configView(cfg)
	out := cmd.OutOrStdout()

	switch configFormat {
	case "yaml", "yml":
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		if err := encoder.Encode(view); err != nil {
			return err
		}
		return encoder.Close()
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(view)
	default:
		return fmt.Errorf("unsupported format: %s (supported: yaml, json)", configFormat)
	}
}

// configView mirrors the config file layout, with durations written the way
// they are configured.
func configView(cfg *config.Config) map[string]any {
	origins := cfg.Server.AllowedOrigins
	if origins == nil {
		origins = []string{}
	}

	return map[string]any{
		"render": map[string]any{
			"indent":      cfg.Render.Indent,
			"max_depth":   cfg.Render.MaxDepth,
			"contain":     cfg.Render.Contain,
			"shadow_root": cfg.Render.ShadowRoot,
		},
		"server": map[string]any{
			"host":            cfg.Server.Host,
			"port":            cfg.Server.Port,
			"root":            cfg.Server.Root,
			"allowed_origins": origins,
		},
		"watch": map[string]any{
			"debounce": cfg.Watch.Debounce.String(),
		},
		"logging": map[string]any{
			"level":  cfg.Logging.Level,
			"format": cfg.Logging.Format,
		},
	}
}
