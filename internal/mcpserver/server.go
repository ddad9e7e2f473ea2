// Package mcpserver exposes a mounted pack over the Model Context Protocol,
// so AI coding assistants can call query_pack and pack_status directly
// instead of shelling out to packctl.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/knowpack-dev/knowpack/internal/telemetry"
	"github.com/knowpack-dev/knowpack/pkg/patch"
	"github.com/knowpack-dev/knowpack/pkg/pack"
	"github.com/knowpack-dev/knowpack/pkg/query"
	"github.com/knowpack-dev/knowpack/pkg/version"
)

// Server bridges a mounted *pack.Pack with MCP clients.
type Server struct {
	mcp    *mcp.Server
	pk     *pack.Pack
	source string
	metrics telemetry.QueryMetricsStore // optional; nil disables invocation logging
	logger  *slog.Logger
}

// QueryInput is the input schema for the query_pack tool.
type QueryInput struct {
	Query     string   `json:"query" jsonschema:"the search query to run against the mounted pack"`
	TopK      int      `json:"top_k,omitempty" jsonschema:"maximum number of hits to return, default 10"`
	Namespace string   `json:"namespace,omitempty" jsonschema:"restrict results to this namespace"`
	Budget    string   `json:"budget,omitempty" jsonschema:"context patch size: mini, small, or full (default small)"`
	Phrases   []string `json:"phrases,omitempty" jsonschema:"phrases that must appear verbatim in a matching block"`
}

// QueryOutput is the output schema for the query_pack tool.
type QueryOutput struct {
	Background  string   `json:"background,omitempty"`
	Snippets    []Snippet `json:"snippets"`
	Definitions []string  `json:"definitions,omitempty"`
	Facts       []string  `json:"facts,omitempty"`
}

// Snippet mirrors patch.Snippet for the MCP wire format.
type Snippet struct {
	Source  string  `json:"source,omitempty"`
	Heading string  `json:"heading,omitempty"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

// StatusInput is the (empty) input schema for the pack_status tool.
type StatusInput struct{}

// StatusOutput is the output schema for the pack_status tool.
type StatusOutput struct {
	Source       string `json:"source"`
	Version      uint32 `json:"version"`
	Blocks       uint32 `json:"blocks"`
	Terms        uint32 `json:"terms"`
	HasSemantic  bool   `json:"has_semantic"`
	SemanticDims uint32 `json:"semantic_dims,omitempty"`
	BuildTag     string `json:"build_tag,omitempty"`
}

// New creates a Server wrapping an already-mounted pack. source is a
// display label (typically the path or URL the pack was mounted from).
func New(pk *pack.Pack, source string) (*Server, error) {
	if pk == nil {
		return nil, fmt.Errorf("pack is required")
	}

	s := &Server{
		pk:     pk,
		source: source,
		logger: slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "knowpack",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// SetMetrics enables per-invocation query logging.
func (s *Server) SetMetrics(store telemetry.QueryMetricsStore) {
	s.metrics = store
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "query_pack",
		Description: "Search the mounted pack and return a context patch (background, snippets, definitions, facts) sized for a prompt window.",
	}, s.queryHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "pack_status",
		Description: "Report the mounted pack's shape: version, block/term counts, and whether it carries a semantic section.",
	}, s.statusHandler)

	s.logger.Debug("registered MCP tools", slog.Int("count", 2))
}

func (s *Server) queryHandler(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (
	*mcp.CallToolResult,
	QueryOutput,
	error,
) {
	if input.Query == "" {
		return nil, QueryOutput{}, fmt.Errorf("query is required")
	}

	start := time.Now()
	opts := query.Options{
		RequirePhrases: input.Phrases,
		Diversify:      true,
	}
	if input.Namespace != "" {
		opts.Namespaces = []string{input.Namespace}
	}
	if input.TopK > 0 {
		opts.TopK = input.TopK
	}

	hits, err := query.Query(ctx, s.pk, input.Query, opts)
	if err != nil {
		return nil, QueryOutput{}, err
	}

	budget := patch.Budget(input.Budget)
	if budget == "" {
		budget = patch.BudgetSmall
	}
	cp := patch.Project(hits, budget)

	if s.metrics != nil {
		s.logInvocation(input.Query, opts, hits, time.Since(start))
	}

	out := QueryOutput{
		Background:  cp.Background,
		Definitions: cp.Definitions,
		Facts:       cp.Facts,
	}
	for _, snip := range cp.Snippets {
		out.Snippets = append(out.Snippets, Snippet{
			Source:  snip.Source,
			Heading: snip.Heading,
			Text:    snip.Text,
			Score:   snip.Score,
		})
	}
	return nil, out, nil
}

func (s *Server) logInvocation(q string, opts query.Options, hits []query.Hit, elapsed time.Duration) {
	event := telemetry.QueryEvent{
		Query:         q,
		ResultCount:   len(hits),
		Latency:       elapsed,
		Timestamp:     time.Now(),
		OptionsHash:   telemetry.HashOptions(strings.Join(opts.Namespaces, ","), budgetKey(opts)),
		LexConfidence: query.LexConfidence(hits),
	}
	if err := s.metrics.LogInvocation(event); err != nil {
		s.logger.Warn("failed to log query invocation", slog.String("error", err.Error()))
	}
}

func budgetKey(opts query.Options) string {
	return fmt.Sprintf("topk=%d,diversify=%v", opts.TopK, opts.Diversify)
}

func (s *Server) statusHandler(_ context.Context, _ *mcp.CallToolRequest, _ StatusInput) (
	*mcp.CallToolResult,
	StatusOutput,
	error,
) {
	meta := s.pk.Meta
	return nil, StatusOutput{
		Source:       s.source,
		Version:      meta.Version,
		Blocks:       meta.BlockCount,
		Terms:        meta.TermCount,
		HasSemantic:  meta.HasSemantic,
		SemanticDims: meta.SemanticDims,
		BuildTag:     meta.BuildTag,
	}, nil
}

// Serve runs the server over the given transport, blocking until ctx is
// canceled. Only "stdio" is currently supported.
func (s *Server) Serve(ctx context.Context, transport string) error {
	switch transport {
	case "stdio":
		s.logger.Info("starting MCP server", slog.String("transport", "stdio"), slog.String("source", s.source))
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
