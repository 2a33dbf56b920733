package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
	"github.com/joseph-ayodele/content-extractor/internal/runner/runnertest"
)

var fakePDF = []byte("%PDF-1.4\n% fake body for scripted tools\n")

const tsvHeader = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n"

func tsvWords(confs ...int) string {
	var b strings.Builder
	b.WriteString(tsvHeader)
	b.WriteString("1\t1\t0\t0\t0\t0\t0\t0\t100\t100\t-1\t\n")
	for i, c := range confs {
		fmt.Fprintf(&b, "5\t1\t1\t1\t1\t%d\t0\t0\t10\t10\t%d\tword\n", i+1, c)
	}
	return b.String()
}

func samplePDF(t *testing.T, pages ...string) []byte {
	t.Helper()
	doc := gofpdf.New("P", "mm", "A4", "")
	for _, p := range pages {
		doc.AddPage()
		doc.SetFont("Helvetica", "", 12)
		doc.Cell(40, 10, p)
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

// renderPages makes pdftoppm write one placeholder PNG per requested page.
func renderPages(total int) runnertest.Handler {
	return func(_ context.Context, args []string) ([]byte, []byte, error) {
		prefix := args[len(args)-1]
		first, last := 1, total
		if f := argValue(args, "-f"); f != "" {
			fmt.Sscan(f, &first)
			fmt.Sscan(argValue(args, "-l"), &last)
		}
		for n := first; n <= last; n++ {
			if err := os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, n), []byte("png"), 0o600); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	}
}

func TestValidatePDF(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		ok   bool
	}{
		{"empty", nil, false},
		{"not a pdf", []byte("hello world"), false},
		{"header", fakePDF, true},
		{"leading junk", append([]byte("\x00\x00junk"), fakePDF...), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePDF(tt.data)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, common.KindInvalidInput, common.KindOf(err))
		})
	}
}

func TestParsePdfInfo(t *testing.T) {
	info := parsePdfInfo("Title:          Quarterly Report\nAuthor:  Jane\nPages:          12\nPage size:      612 x 792 pts (letter)\nbroken line\n")
	assert.Equal(t, "Quarterly Report", info["title"])
	assert.Equal(t, "Jane", info["author"])
	assert.Equal(t, 12, info["pages"])
	assert.Equal(t, "612 x 792 pts (letter)", info["page_size"])
	assert.Len(t, info, 4)
}

func TestNeedsOCR(t *testing.T) {
	long := strings.Repeat("a", 120)
	assert.False(t, NeedsOCR(long, 2, 50))
	assert.True(t, NeedsOCR("  short  ", 1, 50))
	assert.True(t, NeedsOCR(long, 3, 50))
	assert.False(t, NeedsOCR("", 0, 50), "unknown page count never requests OCR")
}

func TestPdfTextExtract(t *testing.T) {
	body := strings.Repeat("Revenue grew in every region this quarter. ", 4)
	fake := runnertest.New().
		Stdout("pdfinfo", "Title: Report\nProducer: LibreOffice\nPages: 2\n").
		Stdout("pdftotext", body+"\f"+body+"\f")

	res, err := NewPdfText(Config{}, fake, nil).Extract(context.Background(), extract.Input{Data: fakePDF, Filename: "r.pdf"})
	require.NoError(t, err)

	assert.Contains(t, res.ExtractedText, "Revenue grew")
	assert.NotContains(t, res.ExtractedText, "\f")
	assert.Equal(t, "Report", res.Metadata["title"])
	assert.Equal(t, 2, res.Metadata["pages"])
	assert.Equal(t, "pdftotext", res.Metadata["engine"])
	assert.Equal(t, false, res.Metadata["needs_ocr"])
	assert.Equal(t, len([]rune(res.ExtractedText)), res.Metadata["char_count"])

	calls := fake.CallsTo("pdftotext")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"-layout", "-enc", "UTF-8", "-eol", "unix"}, calls[0].Args[:5])
	assert.Equal(t, "-", calls[0].Args[len(calls[0].Args)-1])
}

func TestPdfTextNeedsOCRForSparseText(t *testing.T) {
	fake := runnertest.New().
		Stdout("pdfinfo", "Pages: 3\n").
		Stdout("pdftotext", "\f\f  page 1 \f")

	res, err := NewPdfText(Config{}, fake, nil).Extract(context.Background(), extract.Input{Data: fakePDF})
	require.NoError(t, err)
	assert.True(t, res.MetaBool("needs_ocr"))
}

func TestPdfTextBatchesLargeDocuments(t *testing.T) {
	fake := runnertest.New().
		Stdout("pdfinfo", "Pages: 120\n").
		On("pdftotext", func(_ context.Context, args []string) ([]byte, []byte, error) {
			return []byte(fmt.Sprintf("pages %s to %s\n", argValue(args, "-f"), argValue(args, "-l"))), nil, nil
		})

	res, err := NewPdfText(Config{}, fake, nil).Extract(context.Background(), extract.Input{Data: fakePDF})
	require.NoError(t, err)

	calls := fake.CallsTo("pdftotext")
	require.Len(t, calls, 3)
	var ranges []string
	for _, c := range calls {
		ranges = append(ranges, argValue(c.Args, "-f")+"-"+argValue(c.Args, "-l"))
	}
	assert.Equal(t, []string{"1-50", "51-100", "101-120"}, ranges)
	assert.Contains(t, res.ExtractedText, "pages 101 to 120")
	assert.Equal(t, true, res.Metadata["batched"])
}

func TestPdfTextMissingTool(t *testing.T) {
	_, err := NewPdfText(Config{}, runnertest.New(), nil).Extract(context.Background(), extract.Input{Data: fakePDF})
	require.Error(t, err)
	assert.Equal(t, common.KindDependencyMissing, common.KindOf(err))
}

func TestPdfTextNativeEngine(t *testing.T) {
	data := samplePDF(t, "Hello native engine", "Second page")
	fake := runnertest.New()

	res, err := NewPdfText(Config{}, fake, nil).Extract(context.Background(), extract.Input{
		Data:    data,
		Options: extract.Options{"engine": "native"},
	})
	require.NoError(t, err)
	assert.Empty(t, fake.Calls(), "native engine must not shell out")
	assert.Equal(t, "native", res.Metadata["engine"])
	assert.Equal(t, 2, res.Metadata["pages"])
	assert.Contains(t, res.ExtractedText, "Hello")
	assert.True(t, res.MetaBool("needs_ocr"))
}

func TestPdfOcrExtract(t *testing.T) {
	fake := runnertest.New().
		Stdout("pdfinfo", "Pages: 3\n").
		On("pdftoppm", renderPages(3)).
		On("tesseract", func(_ context.Context, args []string) ([]byte, []byte, error) {
			if strings.HasSuffix(args[0], "page-2.png") {
				return nil, []byte("Error in pixReadStream"), &runnertest.ExitError{Code: 1, Stderr: "Error in pixReadStream"}
			}
			if args[len(args)-1] == "tsv" {
				return []byte(tsvWords(90, 80)), nil, nil
			}
			return []byte("Scanned   text\t on a page\n\n\n\nsecond line"), nil, nil
		})

	o := NewPdfOcr(Config{PageBatch: 2, EnableTSVConfidence: true}, fake, nil)
	res, err := o.Extract(context.Background(), extract.Input{Data: fakePDF, Filename: "scan.pdf"})
	require.NoError(t, err)

	pages := strings.Split(res.ExtractedText, PageBreak)
	require.Len(t, pages, 3)
	assert.Equal(t, "Scanned text on a page\n\nsecond line", pages[0])
	assert.Equal(t, "[OCR failed for page 2]", pages[1])

	require.Len(t, res.SubResults, 2)
	assert.Equal(t, extract.ModalityPageOCR, res.SubResults[0].Modality)
	assert.Equal(t, 1.0, res.SubResults[0].StartOffset)
	assert.Equal(t, 3.0, res.SubResults[1].EndOffset)
	assert.Greater(t, res.SubResults[0].Confidence, 0.6)

	assert.Equal(t, 3, res.Metadata["ocr_pages"])
	assert.Equal(t, "tesseract", res.Metadata["engine"])
	assert.Equal(t, false, res.Metadata["needs_ocr"])
	assert.Len(t, res.Metadata["page_confidence"], 3)
	assert.NotEmpty(t, res.Metadata["warnings"])

	assert.Len(t, fake.CallsTo("pdftoppm"), 2, "three pages in batches of two")
	for _, c := range fake.CallsTo("tesseract") {
		assert.Equal(t, []string{"stdout", "-l", "eng"}, c.Args[1:4])
	}
}

func TestPdfOcrAbortsWhenEngineMissing(t *testing.T) {
	fake := runnertest.New().
		Stdout("pdfinfo", "Pages: 2\n").
		On("pdftoppm", renderPages(2))

	_, err := NewPdfOcr(Config{}, fake, nil).Extract(context.Background(), extract.Input{Data: fakePDF})
	require.Error(t, err)
	assert.Equal(t, common.KindDependencyMissing, common.KindOf(err))
	assert.Len(t, fake.CallsTo("tesseract"), 1)
}

func TestPdfOcrNoPagesRendered(t *testing.T) {
	fake := runnertest.New().
		Stdout("pdftoppm", "").
		Stdout("tesseract", "unused")

	_, err := NewPdfOcr(Config{}, fake, nil).Extract(context.Background(), extract.Input{Data: fakePDF})
	require.Error(t, err)
	assert.Equal(t, common.KindToolFailed, common.KindOf(err))
	assert.Contains(t, err.Error(), "no pages rendered")
	assert.Empty(t, fake.CallsTo("tesseract"))
}

func TestPdfOcrOptions(t *testing.T) {
	fake := runnertest.New().
		Stdout("pdfinfo", "Pages: 5\n").
		On("pdftoppm", renderPages(5)).
		Stdout("tesseract", "texte")

	res, err := NewPdfOcr(Config{}, fake, nil).Extract(context.Background(), extract.Input{
		Data:    fakePDF,
		Options: extract.Options{"language": "fra", "dpi": 150, "max_pages": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Metadata["ocr_pages"])
	assert.Equal(t, "fra", res.Metadata["language"])

	render := fake.CallsTo("pdftoppm")
	require.Len(t, render, 1)
	assert.Equal(t, "150", argValue(render[0].Args, "-r"))
	assert.Equal(t, "2", argValue(render[0].Args, "-l"))
	assert.Equal(t, "fra", argValue(fake.CallsTo("tesseract")[0].Args, "-l"))
}

func TestPdfOcrHealth(t *testing.T) {
	ctx := context.Background()
	both := runnertest.New().Stdout("pdftoppm", "pdftoppm version 24.02").Stdout("tesseract", "tesseract 5.3")
	assert.True(t, NewPdfOcr(Config{}, both, nil).HealthCheck(ctx))

	noOCR := runnertest.New().Stdout("pdftoppm", "pdftoppm version 24.02")
	assert.False(t, NewPdfOcr(Config{}, noOCR, nil).HealthCheck(ctx))
}

func TestParseTSVConfidence(t *testing.T) {
	conf, ok := parseTSVConfidence(tsvWords(90, 70))
	require.True(t, ok)
	assert.InDelta(t, 0.8, conf, 1e-9)

	_, ok = parseTSVConfidence(tsvHeader)
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	in := "Line  one\t\twith tabs   \r\n-----\r\n\n\n\nLine two\f"
	assert.Equal(t, "Line one with tabs\n\nLine two", Normalize(in))
	assert.Equal(t, "", Normalize(""))
}

func TestHeuristicConfidence(t *testing.T) {
	assert.Zero(t, heuristicConfidence("   "))
	noisy := heuristicConfidence("~~ |} ;; ^^ ##")
	clean := heuristicConfidence(strings.Repeat("Plain readable words in sentences.\n", 5))
	assert.Greater(t, clean, noisy)
	assert.LessOrEqual(t, clean, 1.0)
}
