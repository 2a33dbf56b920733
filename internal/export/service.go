// Package export renders batch extraction outcomes as an XLSX report.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/pipeline"
)

const (
	extractionsSheet = "Extractions"
	healthSheet      = "Health"
	previewChars     = 140
)

// Service produces XLSX bytes for batch reports.
type Service struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, now: time.Now}
}

// BatchReportXLSX returns a workbook with one row per outcome on the
// Extractions sheet and the strategy availability map on the Health sheet.
func (s *Service) BatchReportXLSX(ctx context.Context, outcomes []pipeline.Outcome, health map[constants.Strategy]bool) ([]byte, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", extractionsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(healthSheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(extractionsSheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"File",
		"Strategy",
		"Status",
		"Text Size",
		"Duration",
		"Summarized",
		"Fallback",
		"Error Kind",
		"Error",
		"Preview",
	}
	writeRow(f, extractionsSheet, 1, toAny(headers))

	for i, o := range outcomes {
		var (
			size, fallback, preview string
			summarized              bool
		)
		if o.Result != nil {
			size = humanize.Bytes(uint64(len(o.Result.ExtractedText)))
			summarized = o.Result.WasSummarized
			if fb, ok := o.Result.Metadata["fallback_strategy"].(string); ok {
				fallback = fb
			}
			preview = truncate(strings.Join(strings.Fields(o.Result.ExtractedText), " "), previewChars)
		}
		errMsg := ""
		if o.Err != nil {
			errMsg = truncate(o.Err.Error(), 2*previewChars)
		}
		writeRow(f, extractionsSheet, i+2, []any{
			o.Filename,
			string(o.Strategy),
			string(o.Status),
			size,
			o.Elapsed.Round(time.Millisecond).String(),
			summarized,
			fallback,
			string(o.ErrorKind),
			errMsg,
			preview,
		})
	}

	_ = f.SetColWidth(extractionsSheet, "A", "A", 36) // file
	_ = f.SetColWidth(extractionsSheet, "B", "C", 18) // strategy, status
	_ = f.SetColWidth(extractionsSheet, "D", "H", 14)
	_ = f.SetColWidth(extractionsSheet, "I", "I", 48) // error
	_ = f.SetColWidth(extractionsSheet, "J", "J", 60) // preview

	writeRow(f, healthSheet, 1, []any{"Strategy", "Available", "Checked"})
	checked := s.now().UTC().Format(time.RFC3339)
	for i, st := range constants.AllStrategies() {
		ok, known := health[st]
		avail := "unknown"
		if known {
			avail = fmt.Sprint(ok)
		}
		writeRow(f, healthSheet, i+2, []any{string(st), avail, checked})
	}
	_ = f.SetColWidth(healthSheet, "A", "A", 22)
	_ = f.SetColWidth(healthSheet, "C", "C", 24)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(outcomes),
		"size", humanize.Bytes(uint64(buf.Len())),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// WriteReport renders the report to path.
func (s *Service) WriteReport(ctx context.Context, path string, outcomes []pipeline.Outcome, health map[constants.Strategy]bool) error {
	b, err := s.BatchReportXLSX(ctx, outcomes, health)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
