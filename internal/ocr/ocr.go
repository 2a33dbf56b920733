// Package ocr implements the PdfText and PdfOcr adapters on top of poppler
// (pdfinfo, pdftotext, pdftoppm) and tesseract, with an in-process PDF text
// engine for hosts without poppler.
package ocr

import (
	"strings"
	"time"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/common"
)

// Config holds the tool names and limits shared by both PDF adapters.
type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdfinfo   string // if empty -> "pdfinfo"
	Pdftoppm  string // if empty -> "pdftoppm"
	Tesseract string // if empty -> "tesseract"

	Language  string // default "eng"
	DPI       int    // rasterization DPI for scanned PDFs, default 300
	PageBatch int    // pages rendered per pdftoppm call
	MaxPages  int    // 0 = no limit

	TessdataDir         string
	EnableTSVConfidence bool

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	LargePageThreshold int
	BatchPages         int
	MinCharsPerPage    int

	CmdTimeout time.Duration
	TempDir    string
}

// ConfigFrom assembles the adapter config from the process configuration.
func ConfigFrom(cfg *common.Config) Config {
	return Config{
		Pdftotext:           cfg.Tools.Pdftotext,
		Pdfinfo:             cfg.Tools.Pdfinfo,
		Pdftoppm:            cfg.Tools.Pdftoppm,
		Tesseract:           cfg.Tools.Tesseract,
		Language:            cfg.OCR.Language,
		DPI:                 cfg.OCR.DPI,
		PageBatch:           cfg.OCR.PageBatch,
		TessdataDir:         cfg.OCR.TessdataDir,
		EnableTSVConfidence: true,
		PSM:                 cfg.OCR.PSM,
		OEM:                 cfg.OCR.OEM,
		LargePageThreshold:  cfg.PDF.LargePageThreshold,
		BatchPages:          cfg.PDF.BatchPages,
		MinCharsPerPage:     cfg.PDF.MinCharsPerPage,
		CmdTimeout:          cfg.Tools.CmdTimeout,
		TempDir:             cfg.Tools.TempDir,
	}
}

func (c Config) withDefaults() Config {
	if c.Pdftotext == "" {
		c.Pdftotext = "pdftotext"
	}
	if c.Pdfinfo == "" {
		c.Pdfinfo = "pdfinfo"
	}
	if c.Pdftoppm == "" {
		c.Pdftoppm = "pdftoppm"
	}
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.Language == "" {
		c.Language = constants.OCRLanguage
	}
	if c.DPI <= 0 {
		c.DPI = constants.OCRDPI
	}
	if c.PageBatch <= 0 {
		c.PageBatch = constants.OCRPageBatch
	}
	if c.LargePageThreshold <= 0 {
		c.LargePageThreshold = constants.PdfLargePageThreshold
	}
	if c.BatchPages <= 0 {
		c.BatchPages = constants.PdfBatchPages
	}
	if c.MinCharsPerPage <= 0 {
		c.MinCharsPerPage = constants.PdfMinCharsPerPage
	}
	if c.CmdTimeout <= 0 {
		c.CmdTimeout = constants.CmdTimeout
	}
	return c
}

// NeedsOCR reports whether a text layer is too sparse to be useful.
func NeedsOCR(text string, pages, minCharsPerPage int) bool {
	if pages <= 0 {
		return false
	}
	return len(strings.TrimSpace(text)) < minCharsPerPage*max(pages, 1)
}
