package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
	"github.com/joseph-ayodele/content-extractor/internal/progress"
	"github.com/joseph-ayodele/content-extractor/internal/runner"
	"github.com/joseph-ayodele/content-extractor/internal/text"
)

// PdfText extracts the embedded text layer of a PDF.
type PdfText struct {
	cfg    Config
	runner runner.Runner
	logger *slog.Logger
}

var _ extract.Adapter = (*PdfText)(nil)

func NewPdfText(cfg Config, r runner.Runner, logger *slog.Logger) *PdfText {
	if logger == nil {
		logger = slog.Default()
	}
	return &PdfText{cfg: cfg.withDefaults(), runner: r, logger: logger}
}

func (p *PdfText) Strategy() constants.Strategy { return constants.PdfText }
func (p *PdfText) Name() string                 { return "pdf_text" }

func (p *PdfText) HealthCheck(ctx context.Context) bool {
	return runner.Probe(ctx, p.runner, p.cfg.Pdftotext, "-v")
}

func (p *PdfText) Extract(ctx context.Context, in extract.Input) (*extract.Result, error) {
	if err := validatePDF(in.Data); err != nil {
		return nil, err
	}
	start := time.Now()
	engine := in.Options.String("engine", "pdftotext")
	minChars := in.Options.Int("min_chars_per_page", p.cfg.MinCharsPerPage)

	var (
		res *extract.Result
		err error
	)
	if engine == "native" {
		res, err = p.extractNative(ctx, in)
	} else {
		res, err = p.extractPoppler(ctx, in)
	}
	if err != nil {
		p.logger.Error("pdf_text.extract.failed", "filename", in.Filename, "engine", engine, "error", err)
		return nil, err
	}

	pages, _ := res.Metadata["pages"].(int)
	res.Set("needs_ocr", NeedsOCR(res.ExtractedText, pages, minChars))
	p.logger.Info("pdf_text.extract.ok",
		"filename", in.Filename,
		"engine", res.Metadata["engine"],
		"pages", pages,
		"chars", res.Metadata["char_count"],
		"needs_ocr", res.Metadata["needs_ocr"],
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (p *PdfText) extractPoppler(ctx context.Context, in extract.Input) (*extract.Result, error) {
	scratch, err := runner.NewScratch(p.cfg.TempDir, "pdftext-*", p.logger)
	if err != nil {
		return nil, err
	}
	defer scratch.Close()
	path, err := scratch.Write("input.pdf", in.Data)
	if err != nil {
		return nil, err
	}

	info, infoErr := runPdfInfo(ctx, p.cfg, p.runner, path)
	if infoErr != nil {
		p.logger.Warn("pdf_text.pdfinfo.failed", "filename", in.Filename, "error", infoErr)
		info = map[string]any{}
	}
	pages := pageCount(info, in.Data)

	var raw string
	batched := pages > p.cfg.LargePageThreshold
	if batched {
		raw, err = p.batched(ctx, path, pages)
	} else {
		raw, err = p.pdfToText(ctx, path, 0, 0)
	}
	if err != nil {
		return nil, err
	}
	if pages == 0 && raw != "" {
		// A form-feed \f is used as page separator by default
		pages = 1 + strings.Count(strings.TrimRight(raw, "\f\n"), "\f")
	}

	res := pdfResult(cleanPdfText(raw))
	for k, v := range info {
		res.Set(k, v)
	}
	res.Set("pages", pages).Set("engine", "pdftotext")
	if batched {
		res.Set("batched", true).Set("batch_pages", p.cfg.BatchPages)
	}
	return res, nil
}

// batched runs pdftotext over fixed page ranges so very large documents
// never produce one huge stdout buffer per call.
func (p *PdfText) batched(ctx context.Context, path string, pages int) (string, error) {
	var b strings.Builder
	for first := 1; first <= pages; first += p.cfg.BatchPages {
		last := min(first+p.cfg.BatchPages-1, pages)
		out, err := p.pdfToText(ctx, path, first, last)
		if err != nil {
			return "", fmt.Errorf("pages %d-%d: %w", first, last, err)
		}
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\f") {
			b.WriteString("\f")
		}
		b.WriteString(out)
		progress.Report(ctx, progress.Span(20, 80, last, pages), fmt.Sprintf("Extracted pages %d-%d of %d", first, last, pages))
	}
	return b.String(), nil
}

func (p *PdfText) pdfToText(ctx context.Context, path string, first, last int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.CmdTimeout)
	defer cancel()
	// pdftotext -layout -enc UTF-8 -eol unix [-f a -l b] <path> -
	args := []string{"-layout", "-enc", "UTF-8", "-eol", "unix"}
	if first > 0 {
		args = append(args, "-f", fmt.Sprint(first), "-l", fmt.Sprint(last))
	}
	args = append(args, path, "-")
	out, _, err := p.runner.Run(ctx, p.cfg.Pdftotext, args...)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (p *PdfText) extractNative(ctx context.Context, in extract.Input) (*extract.Result, error) {
	raw, pages, skipped, err := nativeText(ctx, in.Data)
	if err != nil {
		return nil, err
	}
	res := pdfResult(cleanPdfText(raw))
	res.Set("pages", pages).Set("engine", "native")
	if skipped > 0 {
		res.Warn(fmt.Sprintf("%d pages could not be decoded", skipped))
	}
	return res, nil
}

// cleanPdfText turns page separators into blank lines and trims trailing
// whitespace.
func cleanPdfText(s string) string {
	s = strings.ReplaceAll(s, "\f", "\n\n")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func pdfResult(txt string) *extract.Result {
	res := extract.NewResult(txt)
	res.Set("char_count", len([]rune(txt)))
	res.Set("line_count", text.CountLines(txt))
	return res
}
