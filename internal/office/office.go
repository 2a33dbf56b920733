// Package office implements the OfficeConvert adapter. Spreadsheets, email,
// mailboxes and HTML are converted in-process; word-processing and markup
// formats go through pandoc, with a built-in OOXML/ODF reader when pandoc
// is not installed.
package office

import (
	"context"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
	"github.com/joseph-ayodele/content-extractor/internal/runner"
	"github.com/joseph-ayodele/content-extractor/internal/text"
)

type Config struct {
	Pandoc     string // if empty -> "pandoc"
	CmdTimeout time.Duration
	TempDir    string
}

func ConfigFrom(cfg *common.Config) Config {
	return Config{Pandoc: cfg.Tools.Pandoc, CmdTimeout: cfg.Tools.CmdTimeout, TempDir: cfg.Tools.TempDir}
}

type Adapter struct {
	cfg    Config
	runner runner.Runner
	logger *slog.Logger
}

var _ extract.Adapter = (*Adapter)(nil)

func New(cfg Config, r runner.Runner, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pandoc == "" {
		cfg.Pandoc = "pandoc"
	}
	if cfg.CmdTimeout <= 0 {
		cfg.CmdTimeout = constants.CmdTimeout
	}
	return &Adapter{cfg: cfg, runner: r, logger: logger}
}

func (a *Adapter) Strategy() constants.Strategy { return constants.OfficeConvert }
func (a *Adapter) Name() string                 { return "office_convert" }

// HealthCheck reports whether pandoc is installed. Spreadsheets, email and
// HTML convert without it.
func (a *Adapter) HealthCheck(ctx context.Context) bool {
	return runner.Probe(ctx, a.runner, a.cfg.Pandoc, "--version")
}

// Formats handled in-process; everything else in pandocFormats goes to pandoc.
const (
	formatXLSX = "xlsx"
	formatEML  = "eml"
	formatMBOX = "mbox"
	formatHTML = "html"
)

var extFormats = map[string]string{
	"xlsx": formatXLSX, "xlsm": formatXLSX, "xltx": formatXLSX,
	"eml": formatEML, "mbox": formatMBOX, "mbx": formatMBOX,
	"html": formatHTML, "htm": formatHTML, "xhtml": formatHTML,
	"docx": "docx", "pptx": "pptx", "rtf": "rtf", "odt": "odt",
	"tex": "latex", "latex": "latex", "epub": "epub", "rst": "rst",
	"org": "org", "mediawiki": "mediawiki", "wiki": "mediawiki", "textile": "textile",
}

var mimeFormats = map[string]string{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         formatXLSX,
	"application/vnd.ms-excel.sheet.macroenabled.12":                            formatXLSX,
	"message/rfc822":                                                            formatEML,
	"application/mbox":                                                          formatMBOX,
	"text/html":                                                                 formatHTML,
	"application/xhtml+xml":                                                     formatHTML,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   "docx",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": "pptx",
	"application/rtf":                         "rtf",
	"text/rtf":                                "rtf",
	"application/vnd.oasis.opendocument.text": "odt",
	"application/x-latex":                     "latex",
	"application/x-tex":                       "latex",
	"text/x-tex":                              "latex",
	"application/epub+zip":                    "epub",
}

// FormatOf resolves the conversion format, extension first. Empty means
// unsupported.
func FormatOf(filename, mimeType string) string {
	if f, ok := extFormats[constants.ExtOf(filename)]; ok {
		return f
	}
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = mimeType
	}
	return mimeFormats[strings.ToLower(strings.TrimSpace(mt))]
}

func (a *Adapter) Extract(ctx context.Context, in extract.Input) (*extract.Result, error) {
	if len(in.Data) == 0 {
		return nil, common.InvalidInputf("cannot convert empty document")
	}
	start := time.Now()
	format := FormatOf(in.Filename, in.MIME)

	var (
		res *extract.Result
		err error
	)
	switch format {
	case "":
		res = unsupported(in.Data)
	case formatXLSX:
		res, err = convertSpreadsheet(in.Data, in.Options.Int("max_rows", 0))
	case formatEML:
		res, err = convertEmail(in.Data)
	case formatMBOX:
		res, err = convertMailbox(ctx, in.Data)
	case formatHTML:
		res, err = convertHTML(in.Data)
	default:
		res, err = a.convertDocument(ctx, in, format)
	}
	if err != nil {
		a.logger.Error("office.extract.failed", "filename", in.Filename, "format", format, "error", err)
		return nil, err
	}
	if format != "" {
		res.Set("format", format)
	}
	res.Set("char_count", len([]rune(res.ExtractedText)))
	res.Set("line_count", text.CountLines(res.ExtractedText))

	a.logger.Info("office.extract.ok",
		"filename", in.Filename,
		"format", format,
		"converter", res.Metadata["converter"],
		"chars", res.Metadata["char_count"],
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// unsupported degrades to lossy text.
func unsupported(data []byte) *extract.Result {
	res := text.Decode(data, 0)
	res.Set("fallback", true).Set("reason", "unsupported_format")
	return res
}
