package cmd

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/treebark/internal/logging"
	"github.com/conneroisu/treebark/internal/markdown"
	"github.com/conneroisu/treebark/pkg/treebark"
)

var (
	markdownFlags  RenderFlags
	markdownStrict bool
)

var markdownCmd = &cobra.Command{
	Use:   "markdown [file|-]",
	Short: "Render Markdown with treebark fenced blocks",
	Long: "Convert Markdown to HTML, rendering every ```treebark fenced block\n" +
		`as a template. Blocks without their own data use --data. A block that
cannot be parsed is replaced by an inline error banner; with --strict, so is
a block whose render reports an error.

Examples:
  treebark markdown README.md
  treebark markdown docs/page.md --data site.yaml -o page.html`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMarkdownCommand,
}

func init() {
	rootCmd.AddCommand(markdownCmd)

	AddRenderFlags(markdownCmd, &markdownFlags, "data", "indent", "max-depth", "output")
	markdownCmd.Flags().BoolVar(&markdownStrict, "strict", false, "replace blocks that report render errors with an error banner")
}

func runMarkdownCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	path := "-"
	if len(args) == 1 {
		path = args[0]
	}
	src, err := readInput(cmd, path)
	if err != nil {
		return err
	}

	opts := renderOptions(cmd, &markdownFlags, cfg)
	mdOpts := markdown.Options{
		Indent:      opts.Indent,
		MaxDepth:    opts.MaxDepth,
		Strict:      markdownStrict,
		Diagnostics: logging.NewConsole(logger),
	}
	if markdownFlags.Data != "" {
		raw, err := readInput(cmd, markdownFlags.Data)
		if err != nil {
			return err
		}
		if mdOpts.Data, err = treebark.ParseData(raw); err != nil {
			return fmt.Errorf("parsing data %s: %w", markdownFlags.Data, err)
		}
	}

	var buf bytes.Buffer
	if err := markdown.Convert(src, &buf, mdOpts); err != nil {
		return fmt.Errorf("converting %s: %w", displayName(path), err)
	}

	return writeOutput(cmd, markdownFlags.Output, string(bytes.TrimRight(buf.Bytes(), "\n")))
}
