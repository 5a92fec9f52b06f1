package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/klazomenai/provider-static-server/pkg/app"
	"github.com/klazomenai/provider-static-server/pkg/assets"
	"github.com/klazomenai/provider-static-server/pkg/config"
	"github.com/klazomenai/provider-static-server/pkg/logging"
	"github.com/spf13/cobra"
)

func main() {
	// Load configuration from environment; flags below override it
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := newRootCmd(cfg).Execute(); err != nil {
		if !errors.Is(err, assets.ErrNotBuilt) {
			fmt.Fprintln(os.Stderr, lipgloss.NewRenderer(os.Stderr).NewStyle().Foreground(lipgloss.Color("9")).Render(err.Error()))
		}
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider-static-server",
		Short: "Serve a pre-built single-page application",
		Long: `provider-static-server serves the build output of a single-page
application. Files in the asset directory are served as-is; every other
GET or HEAD request receives the entry document so the client-side router
can handle it.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.IntVar(&cfg.Server.Port, "port", cfg.Server.Port, "HTTP port (env PORT)")
	f.StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "Interface to bind, empty for all (env HOST)")
	f.StringVar(&cfg.Assets.Dir, "dir", cfg.Assets.Dir, "Pre-built asset directory (env ASSET_DIR)")
	f.StringVar(&cfg.Assets.EntryDocument, "entry", cfg.Assets.EntryDocument, "Entry document relative to --dir (env ENTRY_DOCUMENT)")
	f.StringVar(&cfg.Admin.Addr, "admin-addr", cfg.Admin.Addr, "Address for /metrics and /healthz, empty disables (env ADMIN_ADDR)")
	f.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level (debug, info, warn, error)")
	f.StringVar(&cfg.Logging.Format, "log-format", cfg.Logging.Format, "Log format (console, json)")

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	out := os.Stderr
	if cfg.Logging.Format == "json" {
		out = os.Stdout
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, out)

	// Verify the build output before anything binds
	server, err := app.New(cfg, logger)
	if err != nil {
		if errors.Is(err, assets.ErrNotBuilt) {
			fmt.Fprintln(os.Stderr, app.Diagnostic(lipgloss.NewRenderer(os.Stderr), err, cfg.Assets.BuildCommand))
		}
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx)
}
