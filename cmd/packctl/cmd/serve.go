package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/knowpack-dev/knowpack/internal/config"
	"github.com/knowpack-dev/knowpack/internal/logging"
	"github.com/knowpack-dev/knowpack/internal/mcpserver"
	"github.com/knowpack-dev/knowpack/internal/telemetry"
	"github.com/knowpack-dev/knowpack/pkg/pack"
)

type serveOptions struct {
	transport string
	telemetry bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve <pack>",
		Short: "Serve a mounted pack over the Model Context Protocol",
		Long: `Serve mounts a pack once and exposes it to MCP clients as two tools,
query_pack and pack_status, so an agent can query it directly instead
of shelling out to "packctl query" for every call.

Only the stdio transport is currently supported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", "stdio", "MCP transport: stdio")
	cmd.Flags().BoolVar(&opts.telemetry, "telemetry", true, "Log query invocations to the telemetry database")

	return cmd
}

func runServe(ctx context.Context, packPath string, opts serveOptions) error {
	logCfg := logging.DefaultConfig()
	// An MCP server over stdio must never write anything but JSON-RPC frames
	// to stdout; route logs to the file only.
	logCfg.WriteToStderr = false
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	logger = logging.WithPack(logger, packPath, "")
	slog.SetDefault(logger)
	defer cleanup()

	pk, err := pack.Mount(ctx, pack.FromPath(packPath))
	if err != nil {
		return fmt.Errorf("mount %s: %w", packPath, err)
	}

	srv, err := mcpserver.New(pk, packPath)
	if err != nil {
		return fmt.Errorf("create MCP server: %w", err)
	}

	if opts.telemetry {
		if store, dbCleanup, err := openTelemetryStore(); err != nil {
			logger.Warn("telemetry disabled", slog.String("error", err.Error()))
		} else {
			srv.SetMetrics(store)
			defer dbCleanup()
		}
	}

	return srv.Serve(ctx, opts.transport)
}

func openTelemetryStore() (telemetry.QueryMetricsStore, func(), error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if !cfg.Telemetry.Enabled {
		return nil, nil, fmt.Errorf("telemetry disabled in config")
	}

	if err := os.MkdirAll(parentDir(cfg.Telemetry.DBPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create telemetry dir: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Telemetry.DBPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, nil, fmt.Errorf("open telemetry db: %w", err)
	}

	if err := telemetry.InitTelemetrySchema(db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("init telemetry schema: %w", err)
	}

	store, err := telemetry.NewSQLiteMetricsStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create telemetry store: %w", err)
	}

	return store, func() { _ = db.Close() }, nil
}
