package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/content-extractor/internal/extract"
	"github.com/joseph-ayodele/content-extractor/internal/ingest"
	"github.com/joseph-ayodele/content-extractor/internal/pipeline"
)

var (
	flagStrategy string
	flagMIME     string
	flagOptions  string
	flagJSON     bool
)

var fileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "Extract one file and print the result",
	Example: `  extract file report.pdf
  extract file scan.pdf --strategy pdf_ocr --options '{"language":"deu"}'
  extract file talk.mp4 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runFile,
}

func init() {
	rootCmd.AddCommand(fileCmd)
	fileCmd.Flags().StringVar(&flagStrategy, "strategy", "", "Force a strategy instead of detecting one")
	fileCmd.Flags().StringVar(&flagMIME, "mime", "", "MIME type hint (default: from the extension)")
	fileCmd.Flags().StringVar(&flagOptions, "options", "", "Per-job options as a JSON object")
	fileCmd.Flags().BoolVar(&flagJSON, "json", false, "Print the full result as JSON")
}

func runFile(cmd *cobra.Command, args []string) error {
	path := args[0]
	opts, err := extract.ParseOptions([]byte(flagOptions))
	if err != nil {
		return fmt.Errorf("--options: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	mimeType := flagMIME
	if mimeType == "" {
		mimeType = ingest.MIMEOf(path)
	}

	a, _, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.Processor.Process(cmd.Context(), pipeline.Job{
		Data:     data,
		Filename: filepath.Base(path),
		MIME:     mimeType,
		Strategy: flagStrategy,
		Options:  opts,
	})
	if flagJSON {
		if werr := writeJSON(cmd.OutOrStdout(), out); werr != nil {
			return werr
		}
		return err
	}
	if err != nil {
		return err
	}
	printOutcome(cmd.OutOrStdout(), out, len(data))
	return nil
}

func writeJSON(w io.Writer, out pipeline.Outcome) error {
	doc := out.Summary()
	if out.Result != nil {
		doc["result"] = out.Result
	}
	if out.OriginalText != "" {
		doc["original_text"] = out.OriginalText
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func printOutcome(w io.Writer, out pipeline.Outcome, inputBytes int) {
	res := out.Result
	fmt.Fprintf(w, "# %s  strategy=%s  input=%s  text=%s  took=%s",
		out.Filename, out.Strategy,
		humanize.Bytes(uint64(inputBytes)),
		humanize.Bytes(uint64(len(res.ExtractedText))),
		out.Elapsed.Round(time.Millisecond),
	)
	if out.Cached {
		fmt.Fprint(w, "  (cached)")
	}
	if from, ok := res.Metadata["fallback_from"]; ok {
		fmt.Fprintf(w, "  fallback_from=%v", from)
	}
	fmt.Fprintln(w)
	if res.WasSummarized && res.OriginalTokenCount != nil {
		fmt.Fprintf(w, "# summarized from %s tokens\n", humanize.Comma(int64(*res.OriginalTokenCount)))
	}
	if warns, ok := res.Metadata["warnings"].([]string); ok {
		for _, warn := range warns {
			fmt.Fprintf(w, "# warning: %s\n", warn)
		}
	}
	if res.AIDescription != "" && res.AIDescription != res.ExtractedText {
		fmt.Fprintf(w, "\n%s\n", res.AIDescription)
	}
	if res.ExtractedText != "" {
		fmt.Fprintf(w, "\n%s\n", res.ExtractedText)
	}
}
