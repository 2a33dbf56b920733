package ocr

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/runner"
)

var pdfMagic = []byte("%PDF-")

// validatePDF rejects empty input and anything without a PDF header in its
// first kilobyte.
func validatePDF(data []byte) error {
	if len(data) == 0 {
		return common.InvalidInputf("empty PDF input")
	}
	head := data[:min(len(data), 1024)]
	if !bytes.Contains(head, pdfMagic) {
		return common.InvalidInputf("input is not a PDF (missing %%PDF header)")
	}
	return nil
}

// parsePdfInfo turns "Key:   value" lines into snake_case metadata keys.
// "pages" is reported as an integer.
func parsePdfInfo(out string) map[string]any {
	info := make(map[string]any)
	for _, ln := range strings.Split(out, "\n") {
		k, v, ok := strings.Cut(ln, ":")
		if !ok {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(k))
		key = strings.Join(strings.Fields(key), "_")
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		if key == "pages" {
			if n, err := strconv.Atoi(val); err == nil {
				info[key] = n
			}
			continue
		}
		info[key] = val
	}
	return info
}

// runPdfInfo runs pdfinfo on path. Callers treat failures as non-fatal.
func runPdfInfo(ctx context.Context, cfg Config, r runner.Runner, path string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.CmdTimeout)
	defer cancel()
	out, _, err := r.Run(ctx, cfg.Pdfinfo, path)
	if err != nil {
		return nil, err
	}
	return parsePdfInfo(string(out)), nil
}

// pageCount prefers pdfinfo and falls back to parsing the document in-process.
// Zero means unknown.
func pageCount(info map[string]any, data []byte) int {
	if n, ok := info["pages"].(int); ok && n > 0 {
		return n
	}
	n, err := nativePageCount(data)
	if err != nil {
		return 0
	}
	return n
}
