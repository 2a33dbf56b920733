package export

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
	"github.com/joseph-ayodele/content-extractor/internal/pipeline"
)

func TestBatchReportXLSX(t *testing.T) {
	svc := NewService(nil)
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	ok := extract.NewResult(strings.Repeat("hello   world ", 20)).Set("fallback_strategy", "pdf_text")
	outcomes := []pipeline.Outcome{
		{Filename: "scan.pdf", Strategy: constants.PdfOcr, Status: constants.JobStatusDone, Result: ok, Elapsed: 1500 * time.Millisecond},
		{Filename: "call.wav", Strategy: constants.AudioTranscribe, Status: constants.JobStatusFailed,
			ErrorKind: common.KindTimeout, Err: common.Timeout("whisper too slow", nil)},
	}
	health := map[constants.Strategy]bool{constants.PdfOcr: true, constants.Vision: false}

	b, err := svc.BatchReportXLSX(context.Background(), outcomes, health)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Extractions", "Health"}, f.GetSheetList())

	rows, err := f.GetRows("Extractions")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "File", rows[0][0])
	assert.Equal(t, []string{"scan.pdf", "pdf_ocr", "DONE"}, rows[1][:3])
	assert.Equal(t, "1.5s", rows[1][4])
	assert.Equal(t, "pdf_text", rows[1][6])
	assert.True(t, strings.HasPrefix(rows[1][9], "hello world hello"))
	assert.True(t, strings.HasSuffix(rows[1][9], "…"))
	assert.Equal(t, "TIMEOUT", rows[2][7])
	assert.Contains(t, rows[2][8], "whisper too slow")

	hrows, err := f.GetRows("Health")
	require.NoError(t, err)
	require.Len(t, hrows, 10)
	assert.Equal(t, []string{"text_native", "unknown", "2026-01-02T03:04:05Z"}, hrows[1])
	assert.Equal(t, "true", hrows[3][1])
	assert.Equal(t, "false", hrows[4][1])
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, NewService(nil).WriteReport(context.Background(), path, nil, nil))
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Extractions")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "é…", truncate("éééé", 2))
}
