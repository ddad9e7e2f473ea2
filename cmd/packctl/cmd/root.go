// Package cmd provides the CLI commands for packctl.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/knowpack-dev/knowpack/internal/logging"
	"github.com/knowpack-dev/knowpack/pkg/version"
)

// Debug logging flag, shared across all subcommands via the persistent hook.
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the packctl CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packctl",
		Short: "Build and query retrieval packs for AI coding assistants",
		Long: `packctl builds immutable, single-file retrieval packs from a corpus
of documents or source code, and serves hybrid BM25/semantic search over
them for AI coding assistants.

Typical flow:
  packctl build ./docs -o docs.kpack
  packctl query docs.kpack "how does retry work"
  packctl serve docs.kpack`,
		Version: version.Version,
	}

	cmd.SetVersionTemplate("packctl version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.packctl/logs/")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newChunkCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to set up debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		slog.Info("debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
