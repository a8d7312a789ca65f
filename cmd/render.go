package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/net/html"

	"github.com/conneroisu/treebark/internal/logging"
	"github.com/conneroisu/treebark/pkg/treebark"
)

var (
	renderFlags RenderFlags
	renderDOM   bool
)

var renderCmd = &cobra.Command{
	Use:   "render [file|-]",
	Short: "Render a template to HTML",
	Long: `Render a YAML or JSON template to HTML.

The input is either a bare template or a {template, data} document. Data
from --data replaces any data embedded in the document. Diagnostics for
blocked tags, attributes and URLs are logged to stderr; rendering itself
never fails.

Examples:
  treebark render page.yaml
  treebark render page.yaml --data site.json --indent 2
  cat page.json | treebark render - --contain --shadow-root
  treebark render page.yaml --dom -o page.html`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRenderCommand,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	AddRenderFlags(renderCmd, &renderFlags, "data", "indent", "max-depth", "contain", "shadow-root", "output")
	renderCmd.Flags().BoolVar(&renderDOM, "dom", false, "build a DOM tree and serialize it instead of formatting text")
}

func runRenderCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	path := "-"
	if len(args) == 1 {
		path = args[0]
	}

	in, err := loadInput(cmd, path, renderFlags.Data)
	if err != nil {
		return err
	}

	opts := renderOptions(cmd, &renderFlags, cfg)
	opts.Logger = logging.NewConsole(logger)

	var out string
	if renderDOM {
		if out, err = serializeDOM(treebark.RenderDOM(in, opts)); err != nil {
			return err
		}
	} else {
		out = treebark.RenderString(in, opts)
	}

	return writeOutput(cmd, renderFlags.Output, out)
}

// serializeDOM renders the children of a fragment document node.
func serializeDOM(doc *html.Node) (string, error) {
	var sb strings.Builder
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return "", fmt.Errorf("serializing DOM: %w", err)
		}
	}

	return sb.String(), nil
}
