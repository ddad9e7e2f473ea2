package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/knowpack-dev/knowpack/internal/logging"
	"github.com/knowpack-dev/knowpack/internal/ui"
	"github.com/knowpack-dev/knowpack/pkg/pack"
)

// textDocExtensions names the file extensions scanned by a directory build.
var textDocExtensions = map[string]bool{
	".md":   true,
	".txt":  true,
	".mdx":  true,
}

func newBuildCmd() *cobra.Command {
	var (
		output         string
		buildTag       string
		embeddingsPath string
		modelID        string
		jsonl          bool
		noTUI          bool
	)

	cmd := &cobra.Command{
		Use:   "build <path>",
		Short: "Build a pack from a directory of documents",
		Long: `Build reads documents from path and assembles them into a single
immutable pack file.

By default, path is treated as a directory: every .md/.txt/.mdx file
becomes one document, with its relative path used as the id, its file
name (minus extension) as the heading, and its parent directory as the
namespace.

With --jsonl, path is treated as a single JSON-lines file, one document
object ({"text":...,"id":...,"heading":...,"namespace":...}) per line.

Use --embeddings to attach a precomputed semantic section: a JSON file
holding one float32 array per document, in the same order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBuild(ctx, cmd, args[0], buildOptions{
				output:         output,
				buildTag:       buildTag,
				embeddingsPath: embeddingsPath,
				modelID:        modelID,
				jsonl:          jsonl,
				noTUI:          noTUI,
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "docs.kpack", "Output pack file path")
	cmd.Flags().StringVar(&buildTag, "build-tag", "", "Opaque label persisted in the pack's metadata")
	cmd.Flags().StringVar(&embeddingsPath, "embeddings", "", "JSON file of per-document float32 vectors")
	cmd.Flags().StringVar(&modelID, "model-id", "", "Embedding model identifier persisted in the semantic section header")
	cmd.Flags().BoolVar(&jsonl, "jsonl", false, "Treat path as a JSON-lines document file instead of a directory")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Disable TUI mode, use plain text output")

	return cmd
}

type buildOptions struct {
	output         string
	buildTag       string
	embeddingsPath string
	modelID        string
	jsonl          bool
	noTUI          bool
}

func runBuild(ctx context.Context, cmd *cobra.Command, path string, opts buildOptions) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		slog.SetDefault(logging.WithPack(logger, path, opts.buildTag))
		defer cleanup()
	}

	uiCfg := ui.NewConfig(cmd.OutOrStdout(), ui.WithForcePlain(opts.noTUI), ui.WithProjectDir(path))
	renderer := ui.NewRenderer(uiCfg)
	if err := renderer.Start(ctx); err != nil {
		slog.Warn("failed to start progress renderer", slog.String("error", err.Error()))
	}
	defer func() { _ = renderer.Stop() }()

	start := time.Now()

	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageTokenize, Message: "Reading documents"})
	var docs []pack.Document
	var err error
	if opts.jsonl {
		docs, err = readJSONLDocuments(path)
	} else {
		docs, err = readDirectoryDocuments(path)
	}
	if err != nil {
		renderer.AddError(ui.ErrorEvent{File: path, Err: err})
		return err
	}
	if len(docs) == 0 {
		err := fmt.Errorf("no documents found under %s", path)
		renderer.AddError(ui.ErrorEvent{File: path, Err: err})
		return err
	}

	var stageTimings ui.StageTimings
	buildOpts := pack.BuildOptions{
		BuildTag: opts.buildTag,
		ModelID:  opts.modelID,
		SinkPath: opts.output,
		OnStage: func(stage string, elapsed time.Duration) {
			switch stage {
			case "tokenize":
				stageTimings.Tokenize = elapsed
			case "index":
				stageTimings.Index = elapsed
			case "quantize":
				stageTimings.Quantize = elapsed
			case "write":
				stageTimings.Write = elapsed
			}
		},
	}

	if opts.embeddingsPath != "" {
		renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageQuantize, Message: "Loading embeddings"})
		embeddings, err := readEmbeddings(opts.embeddingsPath)
		if err != nil {
			renderer.AddError(ui.ErrorEvent{File: opts.embeddingsPath, Err: err})
			return err
		}
		buildOpts.Embeddings = embeddings
	}

	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageIndex, Current: 0, Total: len(docs), Message: "Indexing"})
	out, err := pack.Build(ctx, docs, buildOpts)
	if err != nil {
		renderer.AddError(ui.ErrorEvent{File: path, Err: err})
		return err
	}

	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageWrite, Message: fmt.Sprintf("Wrote %s", opts.output)})

	pk, mountErr := pack.Mount(ctx, pack.FromBytes(out))
	stats := ui.CompletionStats{
		Documents: len(docs),
		Duration:  time.Since(start),
		Stages:    stageTimings,
	}
	if mountErr == nil {
		stats.Blocks = pk.BlockCount()
		stats.Terms = int(pk.Meta.TermCount)
		stats.Pack = ui.PackInfo{HasSemantic: pk.HasSemantic(), SemanticDims: int(pk.SemanticDims())}
	}
	renderer.Complete(stats)

	return nil
}

// readDirectoryDocuments scans dir for text documents, skipping hidden
// directories. A file's relative path becomes its ID, its file name
// (without extension) its heading, and its parent directory its namespace.
func readDirectoryDocuments(dir string) ([]pack.Document, error) {
	var docs []pack.Document

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if !textDocExtensions[ext] {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if len(strings.TrimSpace(string(data))) == 0 {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		heading := strings.TrimSuffix(filepath.Base(rel), ext)
		namespace := filepath.ToSlash(filepath.Dir(rel))
		if namespace == "." {
			namespace = ""
		}

		docs = append(docs, pack.Document{
			Text:      string(data),
			ID:        filepath.ToSlash(rel),
			Heading:   heading,
			Namespace: namespace,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

type jsonDocument struct {
	Text      string `json:"text"`
	ID        string `json:"id,omitempty"`
	Heading   string `json:"heading,omitempty"`
	Namespace string `json:"namespace,omitempty"`
}

// readJSONLDocuments parses path as newline-delimited JSON documents.
func readJSONLDocuments(path string) ([]pack.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var docs []pack.Document
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var jd jsonDocument
		if err := json.Unmarshal([]byte(line), &jd); err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", path, i+1, err)
		}
		docs = append(docs, pack.Document{
			Text:      jd.Text,
			ID:        jd.ID,
			Heading:   jd.Heading,
			Namespace: jd.Namespace,
		})
	}
	return docs, nil
}

// readEmbeddings parses a JSON file holding one float32 array per document.
func readEmbeddings(path string) ([][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var rows [][]float32
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}
