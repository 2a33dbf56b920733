package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/joseph-ayodele/content-extractor/internal/runner"
)

// Recognition is the OCR output for one image.
type Recognition struct {
	Text       string
	Confidence float64
	Warnings   []string
}

// Tesseract runs the tesseract CLI on rendered pages and standalone images.
type Tesseract struct {
	cfg    Config
	runner runner.Runner
	logger *slog.Logger
}

func NewTesseract(cfg Config, r runner.Runner, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tesseract{cfg: cfg.withDefaults(), runner: r, logger: logger}
}

// Available reports whether the binary answers a version query.
func (t *Tesseract) Available(ctx context.Context) bool {
	return runner.Probe(ctx, t.runner, t.cfg.Tesseract, "--version")
}

// Recognize OCRs the image at path. A failed confidence pass is reported as
// a warning; a failed text pass is an error.
func (t *Tesseract) Recognize(ctx context.Context, path, lang string) (Recognition, error) {
	if lang == "" {
		lang = t.cfg.Language
	}
	txt, err := t.run(ctx, path, lang, false)
	if err != nil {
		return Recognition{}, err
	}
	txt = Normalize(txt)

	rec := Recognition{Text: txt}
	heur := heuristicConfidence(txt)
	var ocrConf float64
	var haveOCR bool
	if t.cfg.EnableTSVConfidence {
		tsv, err := t.run(ctx, path, lang, true)
		if err != nil {
			t.logger.Warn("ocr.tsv.failed", "image", path, "error", err)
			rec.Warnings = append(rec.Warnings, fmt.Sprintf("confidence pass failed: %v", err))
		} else {
			ocrConf, haveOCR = parseTSVConfidence(tsv)
		}
	}
	rec.Confidence = blendConfidence(ocrConf, haveOCR, heur)
	return rec, nil
}

func (t *Tesseract) run(ctx context.Context, path, lang string, tsv bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.CmdTimeout)
	defer cancel()

	// tesseract <file> stdout -l <lang> [opts] [tsv]
	args := []string{path, "stdout", "-l", lang}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.cfg.OEM))
	}
	if tsv {
		args = append(args, "tsv")
	}
	out, _, err := t.runner.Run(ctx, t.cfg.Tesseract, args...)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
