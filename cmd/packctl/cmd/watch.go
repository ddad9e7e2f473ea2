package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	pkgerrors "github.com/knowpack-dev/knowpack/internal/errors"
	"github.com/knowpack-dev/knowpack/internal/logging"
	"github.com/knowpack-dev/knowpack/internal/output"
	"github.com/knowpack-dev/knowpack/internal/packcache"
	"github.com/knowpack-dev/knowpack/pkg/pack"
)

type watchOptions struct {
	output         string
	buildTag       string
	embeddingsPath string
	modelID        string
	jsonl          bool
	debounce       time.Duration
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch <path>",
		Short: "Rebuild a pack whenever its source documents change",
		Long: `Watch mounts an fsnotify watcher on path and triggers a full rebuild
(the same scan performed by "packctl build") whenever a document under it
is created, written, removed, or renamed.

Rebuilds are debounced: bursts of events within the debounce window
collapse into a single rebuild. Each rebuild remains non-incremental —
the whole immutable pack is produced from scratch every time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "docs.kpack", "Output pack file path")
	cmd.Flags().StringVar(&opts.buildTag, "build-tag", "", "Opaque label persisted in the pack's metadata")
	cmd.Flags().StringVar(&opts.embeddingsPath, "embeddings", "", "JSON file of per-document float32 vectors")
	cmd.Flags().StringVar(&opts.modelID, "model-id", "", "Embedding model identifier persisted in the semantic section header")
	cmd.Flags().BoolVar(&opts.jsonl, "jsonl", false, "Treat path as a JSON-lines document file instead of a directory")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 500*time.Millisecond, "Quiet period before a rebuild fires")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, path string, opts watchOptions) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	logger := slog.Default()
	if l, cleanup, err := logging.Setup(logCfg); err == nil {
		logger = logging.WithPack(l, path, opts.buildTag)
		slog.SetDefault(logger)
		defer cleanup()
	}

	out := output.New(cmd.OutOrStdout())

	cache, err := packcache.New(1)
	if err != nil {
		return fmt.Errorf("create pack cache: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := addRecursive(watcher, path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	out.Statusf("👀", "Watching %s (debounce %s)", path, opts.debounce)

	trigger := func() {
		retryCfg := pkgerrors.RebuildRetryConfig()
		err := pkgerrors.Retry(ctx, retryCfg, func() error {
			return rebuild(ctx, path, opts)
		})
		if err != nil {
			out.Errorf("rebuild failed: %v", err)
			logger.Error("rebuild failed", slog.String("error", err.Error()), slog.String("path", path))
			return
		}
		cache.Invalidate(opts.output)
		out.Successf("Rebuilt %s", opts.output)
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", slog.String("error", err.Error()))
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if shouldIgnore(event.Name) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(opts.debounce, trigger)
		}
	}
}

func rebuild(ctx context.Context, path string, opts watchOptions) error {
	var docs []pack.Document
	var err error
	if opts.jsonl {
		docs, err = readJSONLDocuments(path)
	} else {
		docs, err = readDirectoryDocuments(path)
	}
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no documents found under %s", path)
	}

	buildOpts := pack.BuildOptions{
		BuildTag: opts.buildTag,
		ModelID:  opts.modelID,
		SinkPath: opts.output,
	}
	if opts.embeddingsPath != "" {
		embeddings, err := readEmbeddings(opts.embeddingsPath)
		if err != nil {
			return err
		}
		buildOpts.Embeddings = embeddings
	}

	_, err = pack.Build(ctx, docs, buildOpts)
	return err
}

// addRecursive registers root and every directory beneath it with watcher,
// since fsnotify does not watch subtrees on its own.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return watcher.Add(filepath.Dir(root))
	}

	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func shouldIgnore(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".lock")
}
