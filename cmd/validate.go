package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/treebark/internal/errors"
	"github.com/conneroisu/treebark/internal/logging"
	"github.com/conneroisu/treebark/pkg/treebark"
)

var (
	validateFlags  RenderFlags
	validateFormat string
	validateStrict bool
)

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Check templates for blocked or malformed nodes",
	Long: `Render each template without writing output and report every
diagnostic the renderer produced.

A template is invalid when it cannot be parsed or when rendering reports an
error, such as a disallowed tag or a malformed $bind. Warnings, such as a
dropped attribute or blocked URL, fail validation only with --strict.

Examples:
  treebark validate page.yaml
  treebark validate templates/*.yaml --strict
  treebark validate page.json --data site.json --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidateCommand,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	AddRenderFlags(validateCmd, &validateFlags, "data", "max-depth")
	validateCmd.Flags().StringVarP(&validateFormat, "format", "f", "text", "Output format (text, json, yaml)")
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Treat warnings as failures")
}

// FileDiagnostic is one render diagnostic for a validated file.
type FileDiagnostic struct {
	Message   string `json:"message"             yaml:"message"`
	Code      string `json:"code,omitempty"      yaml:"code,omitempty"`
	Tag       string `json:"tag,omitempty"       yaml:"tag,omitempty"`
	Attribute string `json:"attribute,omitempty" yaml:"attribute,omitempty"`
}

// ValidationResult holds the outcome for one template file.
type ValidationResult struct {
	File     string           `json:"file"     yaml:"file"`
	Valid    bool             `json:"valid"    yaml:"valid"`
	Errors   []FileDiagnostic `json:"errors"   yaml:"errors"`
	Warnings []FileDiagnostic `json:"warnings" yaml:"warnings"`
}

// ValidationSummary aggregates results across files.
type ValidationSummary struct {
	Total   int                `json:"total"   yaml:"total"`
	Valid   int                `json:"valid"   yaml:"valid"`
	Invalid int                `json:"invalid" yaml:"invalid"`
	Results []ValidationResult `json:"results" yaml:"results"`
}

func runValidateCommand(cmd *cobra.Command, args []string) error {
	switch validateFormat {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unsupported format: %s", validateFormat)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	summary := ValidationSummary{
		Total:   len(args),
		Results: make([]ValidationResult, 0, len(args)),
	}
	for _, path := range args {
		opts := renderOptions(cmd, &validateFlags, cfg)
		result := validateTemplate(cmd, path, opts, validateStrict)
		summary.Results = append(summary.Results, result)
		if result.Valid {
			summary.Valid++
		} else {
			summary.Invalid++
		}
	}

	out := cmd.OutOrStdout()
	switch validateFormat {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(summary); err != nil {
			return err
		}
	case "yaml":
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		if err := encoder.Encode(summary); err != nil {
			return err
		}
		if err := encoder.Close(); err != nil {
			return err
		}
	default:
		outputValidationText(out, summary)
	}

	if summary.Invalid > 0 {
		return fmt.Errorf("validation failed: %d invalid templates", summary.Invalid)
	}

	return nil
}

func validateTemplate(cmd *cobra.Command, path string, opts *treebark.Options, strict bool) ValidationResult {
	result := ValidationResult{
		File:     displayName(path),
		Errors:   []FileDiagnostic{},
		Warnings: []FileDiagnostic{},
	}

	in, err := loadInput(cmd, path, validateFlags.Data)
	if err != nil {
		result.Errors = append(result.Errors, FileDiagnostic{Message: err.Error(), Code: errors.ErrCodeInvalidTemplate})
		return result
	}

	rec := treebark.NewRecorder()
	opts.Logger = rec
	treebark.RenderString(in, opts)

	for _, e := range rec.Entries() {
		d := FileDiagnostic{
			Message:   e.Message,
			Code:      entryField(e, "code"),
			Tag:       entryField(e, "tag"),
			Attribute: entryField(e, "attribute"),
		}
		switch e.Level {
		case logging.LevelError, logging.LevelFatal:
			result.Errors = append(result.Errors, d)
		case logging.LevelWarn:
			result.Warnings = append(result.Warnings, d)
		}
	}

	result.Valid = len(result.Errors) == 0 && (!strict || len(result.Warnings) == 0)

	return result
}

func entryField(e logging.Entry, key string) string {
	v, ok := e.Fields[key]
	if !ok || v == nil {
		return ""
	}

	return fmt.Sprint(v)
}

func outputValidationText(w io.Writer, summary ValidationSummary) {
	fmt.Fprintf(w, "Validation Summary:\n")
	fmt.Fprintf(w, "  Total templates: %d\n", summary.Total)
	fmt.Fprintf(w, "  Valid: %d\n", summary.Valid)
	fmt.Fprintf(w, "  Invalid: %d\n", summary.Invalid)
	fmt.Fprintln(w)

	for _, result := range summary.Results {
		status := "✅"
		if !result.Valid {
			status = "❌"
		}
		fmt.Fprintf(w, "%s %s\n", status, result.File)

		for _, d := range result.Errors {
			fmt.Fprintf(w, "    Error: %s\n", formatDiagnostic(d))
		}
		for _, d := range result.Warnings {
			fmt.Fprintf(w, "    Warning: %s\n", formatDiagnostic(d))
		}
	}

	if summary.Invalid == 0 {
		fmt.Fprintln(w, "\n✅ All templates are valid!")
	}
}

func formatDiagnostic(d FileDiagnostic) string {
	if d.Code == "" {
		return d.Message
	}

	return fmt.Sprintf("[%s] %s", d.Code, d.Message)
}
