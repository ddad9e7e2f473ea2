package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/knowpack-dev/knowpack/internal/config"
	"github.com/knowpack-dev/knowpack/internal/telemetry"
	"github.com/knowpack-dev/knowpack/internal/ui"
	"github.com/knowpack-dev/knowpack/pkg/pack"
)

type inspectOptions struct {
	jsonOut   bool
	noColor   bool
	telemetry bool
	limit     int
}

func newInspectCmd() *cobra.Command {
	var opts inspectOptions

	cmd := &cobra.Command{
		Use:   "inspect <pack>",
		Short: "Print a pack's shape and recent query telemetry",
		Long: `Inspect mounts a pack and reports its version, block/term counts,
average block length, and semantic section, alongside the pack file's
size and modification time.

Pass --telemetry to also print the most recently logged query
invocations (query text, option hash, hit count, lexical confidence,
and latency) from the telemetry database instead of pack shape.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print output as JSON")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVar(&opts.telemetry, "telemetry", false, "Print recent query telemetry instead of pack shape")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "Maximum number of telemetry rows to print")

	return cmd
}

func runInspect(ctx context.Context, cmd *cobra.Command, packPath string, opts inspectOptions) error {
	if opts.telemetry {
		return runInspectTelemetry(cmd, opts)
	}
	return runInspectPack(ctx, cmd, packPath, opts)
}

func runInspectPack(ctx context.Context, cmd *cobra.Command, packPath string, opts inspectOptions) error {
	info, err := os.Stat(packPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", packPath, err)
	}

	pk, err := pack.Mount(ctx, pack.FromPath(packPath))
	if err != nil {
		return fmt.Errorf("mount %s: %w", packPath, err)
	}

	status := ui.StatusInfo{
		SourcePath:    packPath,
		Version:       int(pk.Meta.Version),
		TotalBlocks:   pk.BlockCount(),
		TotalTerms:    int(pk.Meta.TermCount),
		AvgBlockLen:   pk.Meta.AvgBlockLen,
		BuildTag:      pk.Meta.BuildTag,
		LastBuilt:     info.ModTime(),
		PackSize:      info.Size(),
		HasSemantic:   pk.HasSemantic(),
		SemanticDims:  int(pk.SemanticDims()),
		WatcherStatus: "n/a",
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), opts.noColor)
	if opts.jsonOut {
		return renderer.RenderJSON(status)
	}
	return renderer.Render(status)
}

func runInspectTelemetry(cmd *cobra.Command, opts inspectOptions) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.Telemetry.Enabled {
		return fmt.Errorf("telemetry is disabled; enable it in .packctl.yaml or PACKCTL_TELEMETRY=1")
	}

	db, err := sql.Open("sqlite", cfg.Telemetry.DBPath+"?_journal_mode=WAL")
	if err != nil {
		return fmt.Errorf("open telemetry db: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := telemetry.InitTelemetrySchema(db); err != nil {
		return fmt.Errorf("init telemetry schema: %w", err)
	}

	store, err := telemetry.NewSQLiteMetricsStore(db)
	if err != nil {
		return fmt.Errorf("open telemetry store: %w", err)
	}

	events, err := store.RecentInvocations(opts.limit)
	if err != nil {
		return fmt.Errorf("read telemetry: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(events) == 0 {
		_, _ = fmt.Fprintln(out, "No query invocations logged yet.")
		return nil
	}

	for _, e := range events {
		_, _ = fmt.Fprintf(out, "%s  hits=%-3d lex=%.3f latency=%-8s opts=%s  %q\n",
			e.Timestamp.Format(time.RFC3339),
			e.ResultCount,
			e.LexConfidence,
			e.Latency,
			e.OptionsHash[:min(8, len(e.OptionsHash))],
			e.Query,
		)
	}
	return nil
}
