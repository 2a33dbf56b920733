package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
	"github.com/joseph-ayodele/content-extractor/internal/progress"
	"github.com/joseph-ayodele/content-extractor/internal/runner"
)

const PageBreak = "\n\n--- Page Break ---\n\n"

// PdfOcr rasterizes PDF pages and recognizes them with tesseract.
type PdfOcr struct {
	cfg       Config
	runner    runner.Runner
	tesseract *Tesseract
	logger    *slog.Logger
}

var _ extract.Adapter = (*PdfOcr)(nil)

func NewPdfOcr(cfg Config, r runner.Runner, logger *slog.Logger) *PdfOcr {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &PdfOcr{cfg: cfg, runner: r, tesseract: NewTesseract(cfg, r, logger), logger: logger}
}

func (p *PdfOcr) Strategy() constants.Strategy { return constants.PdfOcr }
func (p *PdfOcr) Name() string                 { return "pdf_ocr" }

// HealthCheck requires both the rasterizer and the OCR engine.
func (p *PdfOcr) HealthCheck(ctx context.Context) bool {
	return runner.Probe(ctx, p.runner, p.cfg.Pdftoppm, "-v") && p.tesseract.Available(ctx)
}

type renderedPage struct {
	num  int
	path string
}

func (p *PdfOcr) Extract(ctx context.Context, in extract.Input) (*extract.Result, error) {
	if err := validatePDF(in.Data); err != nil {
		return nil, err
	}
	start := time.Now()
	lang := in.Options.String("language", p.cfg.Language)
	dpi := in.Options.Int("dpi", p.cfg.DPI)
	maxPages := in.Options.Int("max_pages", p.cfg.MaxPages)

	scratch, err := runner.NewScratch(p.cfg.TempDir, "pdfocr-*", p.logger)
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
		p.logger.Debug("pdf_ocr.pdfinfo.failed", "filename", in.Filename, "error", infoErr)
	}
	total := pageCount(info, in.Data)
	if maxPages > 0 && (total == 0 || total > maxPages) {
		total = maxPages
	}

	var (
		texts    []string
		confs    = []float64{}
		subs     []extract.SubResult
		warnings []string
		sum      float64
		ok       int
	)
	recognize := func(pages []renderedPage) error {
		for _, pg := range pages {
			if maxPages > 0 && pg.num > maxPages {
				continue
			}
			rec, err := p.tesseract.Recognize(ctx, pg.path, lang)
			if err != nil {
				if abortsOCR(ctx, err) {
					return err
				}
				p.logger.Warn("pdf_ocr.page.failed", "filename", in.Filename, "page", pg.num, "error", err)
				warnings = append(warnings, fmt.Sprintf("page %d: %v", pg.num, err))
				texts = append(texts, fmt.Sprintf("[OCR failed for page %d]", pg.num))
				confs = append(confs, 0)
				continue
			}
			warnings = append(warnings, rec.Warnings...)
			texts = append(texts, rec.Text)
			confs = append(confs, rec.Confidence)
			subs = append(subs, extract.SubResult{
				Modality:    extract.ModalityPageOCR,
				StartOffset: float64(pg.num),
				EndOffset:   float64(pg.num),
				Text:        rec.Text,
				Confidence:  rec.Confidence,
			})
			sum += rec.Confidence
			ok++
			if total > 0 {
				progress.Report(ctx, progress.Span(20, 80, pg.num, total), fmt.Sprintf("OCR page %d of %d", pg.num, total))
			}
			_ = os.Remove(pg.path)
		}
		return nil
	}

	prefix := scratch.Path("page")
	if total > 0 {
		for first := 1; first <= total; first += p.cfg.PageBatch {
			last := min(first+p.cfg.PageBatch-1, total)
			pages, err := p.render(ctx, path, prefix, dpi, first, last)
			if err != nil {
				return nil, err
			}
			if err := recognize(pages); err != nil {
				return nil, err
			}
		}
	} else {
		// unknown page count: let pdftoppm render everything in one call
		pages, err := p.render(ctx, path, prefix, dpi, 0, 0)
		if err != nil {
			return nil, err
		}
		if err := recognize(pages); err != nil {
			return nil, err
		}
	}

	if len(texts) == 0 {
		p.logger.Error("pdf_ocr.extract.failed", "filename", in.Filename, "error", "no pages rendered")
		return nil, common.ToolFailed("pdftoppm: no pages rendered from PDF", nil, false)
	}

	joined := strings.Join(texts, PageBreak)
	res := pdfResult(joined)
	res.SubResults = extract.SortSubResults(subs)
	res.Set("ocr_pages", len(texts)).
		Set("dpi", dpi).
		Set("language", lang).
		Set("engine", "tesseract").
		Set("page_confidence", confs).
		Set("needs_ocr", false)
	if ok > 0 {
		res.Set("mean_confidence", sum/float64(ok))
	} else {
		res.Set("mean_confidence", 0.0)
	}
	for _, w := range warnings {
		res.Warn(w)
	}

	p.logger.Info("pdf_ocr.extract.ok",
		"filename", in.Filename,
		"pages", len(texts),
		"failed_pages", len(texts)-ok,
		"language", lang,
		"dpi", dpi,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// render rasterizes pages [first,last] (all pages when first is 0) and
// returns the images ordered by page number.
func (p *PdfOcr) render(ctx context.Context, path, prefix string, dpi, first, last int) ([]renderedPage, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*p.cfg.CmdTimeout)
	defer cancel()

	// pdftoppm -r 300 -png [-f a -l b] <in.pdf> <tmp/page>
	args := []string{"-r", strconv.Itoa(dpi), "-png"}
	if first > 0 {
		args = append(args, "-f", strconv.Itoa(first), "-l", strconv.Itoa(last))
	}
	args = append(args, path, prefix)
	if _, _, err := p.runner.Run(ctx, p.cfg.Pdftoppm, args...); err != nil {
		return nil, err
	}

	// collect generated pngs (prefix-1.png, prefix-01.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	pages := make([]renderedPage, 0, len(matches))
	for _, m := range matches {
		n, ok := pageNumber(prefix, m)
		if !ok || (first > 0 && (n < first || n > last)) {
			continue
		}
		pages = append(pages, renderedPage{num: n, path: m})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].num < pages[j].num })
	return pages, nil
}

func pageNumber(prefix, file string) (int, bool) {
	s := strings.TrimSuffix(strings.TrimPrefix(file, prefix+"-"), ".png")
	n, err := strconv.Atoi(s)
	return n, err == nil && n > 0
}

// abortsOCR reports page failures that make the remaining pages pointless:
// the engine is gone, the budget is spent, or the job was canceled.
func abortsOCR(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return true
	}
	switch common.KindOf(err) {
	case common.KindDependencyMissing, common.KindTimeout:
		return true
	}
	return false
}
