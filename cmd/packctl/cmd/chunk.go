package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/knowpack-dev/knowpack/internal/discover"
)

type chunkOptions struct {
	format string
}

func newChunkCmd() *cobra.Command {
	var opts chunkOptions

	cmd := &cobra.Command{
		Use:   "chunk <path>",
		Short: "Parse Go source under path into retrievable chunks",
		Long: `Chunk walks path for .go files, parses each with tree-sitter, and
prints one chunk per top-level function, method, type, const, or var
declaration. Pipe its jsonl output into "packctl build --jsonl" to
build a pack from the result.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChunk(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json, jsonl")

	return cmd
}

func runChunk(ctx context.Context, cmd *cobra.Command, path string, opts chunkOptions) error {
	walker := discover.NewWalker()
	defer walker.Close()

	symbols, err := walker.Discover(ctx, path)
	if err != nil {
		return fmt.Errorf("discover %s: %w", path, err)
	}

	out := cmd.OutOrStdout()

	switch opts.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(symbols)
	case "jsonl":
		docs := discover.ToDocuments(symbols)
		enc := json.NewEncoder(out)
		for _, d := range docs {
			if err := enc.Encode(d); err != nil {
				return err
			}
		}
		return nil
	default:
		for _, s := range symbols {
			fmt.Fprintf(out, "%s:%d-%d  %s  (%s)\n", s.File, s.StartLine, s.EndLine, s.Name, s.Namespace)
		}
		return nil
	}
}
