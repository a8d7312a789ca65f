package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/conneroisu/treebark/internal/config"
	"github.com/conneroisu/treebark/pkg/treebark"
)

// maxInputSize bounds template, data and Markdown inputs.
const maxInputSize = 8 << 20

// RenderFlags are the render settings shared by render, validate, watch and
// markdown. Unset flags fall back to the render section of the config.
type RenderFlags struct {
	Data       string
	Indent     string
	MaxDepth   int
	Contain    bool
	ShadowRoot bool
	Output     string
}

// renderFlagSet describes RenderFlags. Commands pick the flags they use with
// AddRenderFlags.
func renderFlagSet(flags *RenderFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet("render", pflag.ContinueOnError)
	fs.StringVarP(&flags.Data, "data", "d", "", "data file (YAML or JSON); overrides data embedded in the template")
	fs.StringVarP(&flags.Indent, "indent", "i", "", `indentation: "true", a number of spaces, "tab", or a literal string`)
	fs.IntVar(&flags.MaxDepth, "max-depth", 0, "maximum template nesting depth")
	fs.BoolVar(&flags.Contain, "contain", false, "wrap output in a CSS-contained host element")
	fs.BoolVar(&flags.ShadowRoot, "shadow-root", false, "wrap output in a declarative shadow root")
	fs.StringVarP(&flags.Output, "output", "o", "", "write output to a file instead of stdout")

	return fs
}

// AddRenderFlags adds the named render flags to cmd.
func AddRenderFlags(cmd *cobra.Command, flags *RenderFlags, names ...string) {
	fs := renderFlagSet(flags)
	for _, name := range names {
		if f := fs.Lookup(name); f != nil {
			cmd.Flags().AddFlag(f)
		}
	}
}

// renderOptions merges changed flags over the config's render section.
func renderOptions(cmd *cobra.Command, flags *RenderFlags, cfg *config.Config) *treebark.Options {
	opts := &treebark.Options{
		Indent:   treebark.ParseIndentFlag(cfg.Render.Indent),
		MaxDepth: cfg.Render.MaxDepth,
		Container: treebark.Container{
			Contain:    cfg.Render.Contain,
			ShadowRoot: cfg.Render.ShadowRoot,
		},
	}

	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("indent") {
		opts.Indent = treebark.ParseIndentFlag(flags.Indent)
	}
	if changed("max-depth") {
		opts.MaxDepth = flags.MaxDepth
	}
	if changed("contain") {
		opts.Container.Contain = flags.Contain
	}
	if changed("shadow-root") {
		opts.Container.ShadowRoot = flags.ShadowRoot
	}

	return opts
}

// readInput reads path, or stdin when path is "-" or empty.
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	var r io.Reader
	if path == "" || path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	src, err := io.ReadAll(io.LimitReader(r, maxInputSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", displayName(path), err)
	}
	if len(src) > maxInputSize {
		return nil, fmt.Errorf("%s is larger than %d bytes", displayName(path), maxInputSize)
	}

	return src, nil
}

// loadInput parses a template document and, when dataPath is set, replaces
// its data with the contents of that file.
func loadInput(cmd *cobra.Command, path, dataPath string) (treebark.Input, error) {
	src, err := readInput(cmd, path)
	if err != nil {
		return treebark.Input{}, err
	}
	in, err := treebark.ParseDocument(src)
	if err != nil {
		return treebark.Input{}, fmt.Errorf("parsing %s: %w", displayName(path), err)
	}

	if dataPath != "" {
		raw, err := readInput(cmd, dataPath)
		if err != nil {
			return treebark.Input{}, err
		}
		if in.Data, err = treebark.ParseData(raw); err != nil {
			return treebark.Input{}, fmt.Errorf("parsing data %s: %w", displayName(dataPath), err)
		}
	}

	return in, nil
}

// writeOutput writes out to path, or to the command's stdout when path is
// empty. A trailing newline is added for terminals.
func writeOutput(cmd *cobra.Command, path, out string) error {
	if path == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), out)
		return err
	}
	if err := os.WriteFile(path, []byte(out+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}

func displayName(path string) string {
	if path == "" || path == "-" {
		return "stdin"
	}

	return path
}
