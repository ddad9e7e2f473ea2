package cmd

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/knowpack-dev/knowpack/internal/config"
	"github.com/knowpack-dev/knowpack/internal/logging"
	"github.com/knowpack-dev/knowpack/internal/output"
	"github.com/knowpack-dev/knowpack/internal/telemetry"
	"github.com/knowpack-dev/knowpack/pkg/patch"
	"github.com/knowpack-dev/knowpack/pkg/pack"
	"github.com/knowpack-dev/knowpack/pkg/query"
)

type queryOptions struct {
	topK      int
	namespace string
	phrases   []string
	expand    bool
	semantic  string
	diversify bool
	budget    string
	format    string
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <pack> <text...>",
		Short: "Query a pack and print ranked hits",
		Long: `Query mounts a pack and runs the ranking pipeline (BM25L, proximity
and heading boosts, optional expansion and semantic rerank, MMR
diversification), printing the resulting hits.

Pass --budget to print an assembled context patch
(background, snippets, definitions, facts) instead of raw hits.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args[1:], " ")
			return runQuery(cmd.Context(), cmd, args[0], text, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "n", 10, "Maximum number of hits")
	cmd.Flags().StringVar(&opts.namespace, "namespace", "", "Restrict results to this namespace")
	cmd.Flags().StringSliceVar(&opts.phrases, "phrase", nil, "Required phrase (repeatable)")
	cmd.Flags().BoolVar(&opts.expand, "expand", false, "Enable pseudo-relevance query expansion")
	cmd.Flags().StringVar(&opts.semantic, "semantic", "auto", "Semantic rerank mode: auto, force, off")
	cmd.Flags().BoolVar(&opts.diversify, "diversify", true, "Enable MMR diversification")
	cmd.Flags().StringVar(&opts.budget, "budget", "", "Print a context patch at this size: mini, small, full")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, packPath, text string, opts queryOptions) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		slog.SetDefault(logging.WithQuery(logger, packPath, text))
		defer cleanup()
	}

	out := output.New(cmd.OutOrStdout())

	pk, err := pack.Mount(ctx, pack.FromPath(packPath))
	if err != nil {
		return fmt.Errorf("mount %s: %w", packPath, err)
	}

	semMode := query.SemanticMode(opts.semantic)

	queryOpts := query.Options{
		TopK:           opts.topK,
		RequirePhrases: opts.phrases,
		Expand:         opts.expand,
		Semantic:       semMode,
		Diversify:      opts.diversify,
	}
	if opts.namespace != "" {
		queryOpts.Namespaces = []string{opts.namespace}
	}

	start := time.Now()
	hits, err := query.Query(ctx, pk, text, queryOpts)
	elapsed := time.Since(start)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	logInvocation(packPath, text, queryOpts, hits, elapsed)

	if opts.budget != "" {
		cp := patch.Project(hits, patch.Budget(opts.budget))
		return renderPatch(out, cmd, cp, opts.format)
	}

	return renderHits(out, cmd, hits, opts.format)
}

func renderHits(out *output.Writer, cmd *cobra.Command, hits []query.Hit, format string) error {
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}

	views := make([]output.HitView, len(hits))
	for i, h := range hits {
		label := h.Heading
		if label == "" {
			label = h.Source
		}
		views[i] = output.HitView{Rank: i + 1, Score: h.Score, Label: label, Snippet: h.Text}
	}
	out.Hits(views)
	return nil
}

func renderPatch(out *output.Writer, cmd *cobra.Command, cp patch.ContextPatch, format string) error {
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cp)
	}

	if cp.Background != "" {
		out.Status("", cp.Background)
		out.Newline()
	}
	for _, d := range cp.Definitions {
		out.Status("•", d)
	}
	for _, f := range cp.Facts {
		out.Status("•", f)
	}
	for _, s := range cp.Snippets {
		label := s.Heading
		if label == "" {
			label = s.Source
		}
		out.Statusf("", "[%.3f] %s", s.Score, label)
		out.Status("", "   "+strings.ReplaceAll(s.Text, "\n", " "))
	}
	return nil
}

// logInvocation records one query invocation to the telemetry log, if
// telemetry is enabled and its store can be opened. Failures here never
// fail the query itself.
func logInvocation(packPath, text string, opts query.Options, hits []query.Hit, elapsed time.Duration) {
	cfg, err := config.Load(".")
	if err != nil {
		cfg = config.NewConfig()
	}
	if !cfg.Telemetry.Enabled {
		return
	}

	if err := os.MkdirAll(parentDir(cfg.Telemetry.DBPath), 0o755); err != nil {
		slog.Debug("failed to create telemetry dir", slog.String("error", err.Error()))
		return
	}

	db, err := sql.Open("sqlite", cfg.Telemetry.DBPath+"?_journal_mode=WAL")
	if err != nil {
		slog.Debug("failed to open telemetry db", slog.String("error", err.Error()))
		return
	}
	defer func() { _ = db.Close() }()

	if err := telemetry.InitTelemetrySchema(db); err != nil {
		slog.Debug("failed to init telemetry schema", slog.String("error", err.Error()))
		return
	}

	store, err := telemetry.NewSQLiteMetricsStore(db)
	if err != nil {
		slog.Debug("failed to create telemetry store", slog.String("error", err.Error()))
		return
	}

	event := telemetry.QueryEvent{
		Query:         text,
		ResultCount:   len(hits),
		Latency:       elapsed,
		Timestamp:     time.Now(),
		OptionsHash:   telemetry.HashOptions(packPath, string(opts.Semantic), strings.Join(opts.Namespaces, ",")),
		LexConfidence: query.LexConfidence(hits),
	}
	if err := store.LogInvocation(event); err != nil {
		slog.Debug("failed to log query invocation", slog.String("error", err.Error()))
	}
}

func parentDir(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "."
	}
	return path[:i]
}
