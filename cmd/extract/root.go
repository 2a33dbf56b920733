package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/content-extractor/internal/app"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/progress"
)

var version = "dev"

var (
	flagVerbose     bool
	flagPersistProg bool
)

var rootCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract text and descriptions from files of any type",
	Long: `extract detects the content type of a file, runs the matching extraction
strategy (text, PDF, OCR, vision, audio, video, code, office, structured data)
and prints the extracted text.

Backends, tools and limits are configured through the same environment
variables as extractd (VISION_PROVIDER, OCR_LANG, EXTRACTION_CMD_TIMEOUT, ...).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log pipeline events to stderr")
	rootCmd.PersistentFlags().BoolVar(&flagPersistProg, "persist-progress", false, "Record progress markers in the configured database instead of memory")
}

// newApp builds the stack for one CLI invocation. Logs go to stderr so stdout
// carries only results.
func newApp(ctx context.Context) (*app.App, *slog.Logger, error) {
	cfg := common.LoadConfig()
	logCfg := cfg.Log
	if flagVerbose {
		logCfg.Level = "debug"
	} else if logCfg.Level == "" || logCfg.Level == "info" {
		logCfg.Level = "warn"
	}
	logger := app.NewLogger(logCfg, os.Stderr)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return nil, logger, err
	}
	var opts []app.Option
	if !flagPersistProg {
		opts = append(opts, app.WithStore(progress.NewMemory()))
	}
	a, err := app.Build(ctx, cfg, logger, opts...)
	return a, logger, err
}
