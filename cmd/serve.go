package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/treebark/internal/server"
)

// shutdownTimeout bounds graceful shutdown after a signal.
const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve [dir]",
	Short: "Start the live-reloading preview server",
	Long: `Serve every template under a directory as a rendered preview page.
Pages reload in the browser whenever their template changes. The server also
accepts POST /api/render for rendering templates sent by editors.

Examples:
  treebark serve                   # Serve templates under server.root
  treebark serve ./templates       # Serve a specific directory
  treebark serve -p 3000 --host 0.0.0.0`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.Server.Root = args[0]
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error(shutdownCtx, err, "Error during server shutdown")
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Starting treebark preview at http://%s\n", cfg.Server.Addr())

	if err := srv.Start(ctx); err != nil {
		return err
	}

	return nil
}
