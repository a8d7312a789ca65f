package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/treebark/internal/config"
	"github.com/conneroisu/treebark/internal/logging"
	"github.com/conneroisu/treebark/internal/watcher"
	"github.com/conneroisu/treebark/pkg/treebark"
)

var watchFlags RenderFlags

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Re-render a template whenever it or its data changes",
	Long: `Render a template, then render it again each time the template or
the --data file changes on disk. Bursts of writes are debounced using
watch.debounce from the configuration.

Examples:
  treebark watch page.yaml -o page.html
  treebark watch page.yaml --data site.json --indent 2 -o page.html`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	AddRenderFlags(watchCmd, &watchFlags, "data", "indent", "max-depth", "contain", "shadow-root", "output")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	return watchTemplate(ctx, cmd, cfg, args[0])
}

// watchTemplate renders path once and then after every change until ctx is
// done.
func watchTemplate(ctx context.Context, cmd *cobra.Command, cfg *config.Config, path string) error {
	logger := newLogger(cfg, cmd.ErrOrStderr()).WithComponent("watch")

	render := func() {
		in, err := loadInput(cmd, path, watchFlags.Data)
		if err != nil {
			logger.Error(ctx, err, "Template could not be loaded", "path", path)
			return
		}
		opts := renderOptions(cmd, &watchFlags, cfg)
		opts.Logger = logging.NewConsole(logger)
		if err := writeOutput(cmd, watchFlags.Output, treebark.RenderString(in, opts)); err != nil {
			logger.Error(ctx, err, "Output could not be written", "path", watchFlags.Output)
			return
		}
		logger.Info(ctx, "Rendered template", "path", path)
	}

	fileWatcher, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	watched := []string{path}
	if watchFlags.Data != "" && watchFlags.Data != "-" {
		watched = append(watched, watchFlags.Data)
	}
	fileWatcher.AddFilter(watcher.FileFilterFor(watched...))

	dirs := make(map[string]bool)
	for _, p := range watched {
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := fileWatcher.AddPath(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	fileWatcher.AddHandler(func(events []watcher.ChangeEvent) error {
		for _, event := range events {
			logger.Debug(ctx, "File changed", "path", event.Path, "type", event.Type.String())
		}
		render()

		return nil
	})

	render()

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	logger.Info(ctx, "Watching for changes", "path", path)

	<-ctx.Done()
	logger.Info(ctx, "Stopping file watcher")

	return nil
}
