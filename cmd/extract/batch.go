package main

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/content-extractor/internal/async"
	"github.com/joseph-ayodele/content-extractor/internal/export"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
	"github.com/joseph-ayodele/content-extractor/internal/ingest"
	"github.com/joseph-ayodele/content-extractor/internal/pipeline"
)

var (
	flagOut        string
	flagWorkers    int
	flagSkipHidden bool
	flagExts       []string
	flagBatchOpts  string
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Extract every supported file under a directory and write an XLSX report",
	Example: `  extract batch ./inbox --out report.xlsx
  extract batch ./docs --ext pdf,docx --workers 8`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringVar(&flagOut, "out", "extraction-report.xlsx", "Report path")
	batchCmd.Flags().IntVar(&flagWorkers, "workers", 0, "Concurrent jobs (default: WORKERS)")
	batchCmd.Flags().BoolVar(&flagSkipHidden, "skip-hidden", true, "Skip dotfiles and dot-directories")
	batchCmd.Flags().StringSliceVar(&flagExts, "ext", nil, "Only these extensions (default: every supported extension)")
	batchCmd.Flags().StringVar(&flagBatchOpts, "options", "", "Per-job options applied to every file, as a JSON object")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	opts, err := extract.ParseOptions([]byte(flagBatchOpts))
	if err != nil {
		return fmt.Errorf("--options: %w", err)
	}

	a, logger, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var (
		mu       sync.Mutex
		outcomes []pipeline.Outcome
	)
	qopts := []async.Option{async.WithOnDone(func(out pipeline.Outcome, _ error) {
		mu.Lock()
		outcomes = append(outcomes, out)
		mu.Unlock()
	})}
	if flagWorkers > 0 {
		qopts = append(qopts, async.WithWorkers(flagWorkers))
	}
	queue := async.NewFromConfig(a.Processor, a.Config, logger, qopts...)

	ing := ingest.NewFSIngestor(queue, logger)
	ing.Options = opts
	if len(flagExts) > 0 {
		ing.AllowedExts = ingest.ExtSet(flagExts)
	}

	start := time.Now()
	results, stats, err := ing.IngestDirectory(ctx, args[0], flagSkipHidden)
	// drain even on a walk error so submitted jobs finish; an interrupt cancels them
	queue.Shutdown(ctx)
	if err != nil {
		return err
	}

	w := cmd.ErrOrStderr()
	for _, r := range results {
		if r.Err != "" {
			fmt.Fprintf(w, "skipped %s: %s\n", r.SourcePath, r.Err)
		}
	}

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Filename < outcomes[j].Filename })
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	health := a.Registry.HealthCheckAll(ctx)
	if err := export.NewService(logger).WriteReport(ctx, flagOut, outcomes, health); err != nil {
		return err
	}

	var inputBytes int64
	for _, r := range results {
		inputBytes += r.SizeBytes
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d files scanned (%s), %d extracted, %d failed, %d duplicates in %s; report: %s\n",
		stats.Scanned, humanize.Bytes(uint64(inputBytes)), len(outcomes)-failed, failed, stats.Deduplicated,
		time.Since(start).Round(time.Millisecond), flagOut)
	return nil
}
