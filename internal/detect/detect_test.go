package detect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/detect"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		override string
		mime     string
		filename string
		want     constants.Strategy
	}{
		{name: "override wins", override: "pdf_ocr", mime: "application/pdf", filename: "scan.pdf", want: constants.PdfOcr},
		{name: "override alias", override: "pandoc", mime: "text/plain", filename: "a.txt", want: constants.OfficeConvert},
		{name: "invalid override ignored", override: "bogus", mime: "application/pdf", want: constants.PdfText},
		{name: "pdf", mime: "application/pdf", filename: "a.pdf", want: constants.PdfText},
		{name: "image", mime: "image/png", filename: "a.png", want: constants.Vision},
		{name: "svg is structured", mime: "image/svg+xml", filename: "a.svg", want: constants.StructuredExtract},
		{name: "midi", mime: "audio/midi", filename: "a.mid", want: constants.StructuredExtract},
		{name: "audio", mime: "audio/mpeg", filename: "a.mp3", want: constants.AudioTranscribe},
		{name: "video", mime: "video/mp4", filename: "a.mp4", want: constants.VideoMultimodal},
		{name: "docx", mime: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", want: constants.OfficeConvert},
		{name: "email", mime: "message/rfc822", filename: "a.eml", want: constants.OfficeConvert},
		{name: "json with params", mime: "application/json; charset=utf-8", want: constants.StructuredExtract},
		{name: "calendar", mime: "text/calendar", want: constants.StructuredExtract},
		{name: "plain text", mime: "text/plain", filename: "notes.txt", want: constants.TextNative},
		{name: "code refined from text", mime: "text/plain", filename: "main.go", want: constants.CodeAst},
		{name: "csv refined from text", mime: "text/plain", filename: "data.csv", want: constants.StructuredExtract},
		{name: "octet-stream by extension", mime: "application/octet-stream", filename: "report.docx", want: constants.OfficeConvert},
		{name: "no mime by extension", filename: "clip.MOV", want: constants.VideoMultimodal},
		{name: "unknown defaults to text", mime: "application/x-unknown", filename: "blob.bin", want: constants.TextNative},
		{name: "nothing at all", want: constants.TextNative},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detect.Detect(tt.override, tt.mime, tt.filename)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, detect.Detect(tt.override, tt.mime, tt.filename), "detection is idempotent")
		})
	}
}

func TestEveryExtensionResolves(t *testing.T) {
	for ext, want := range constants.ExtensionStrategies {
		got := detect.Detect("", "application/octet-stream", "file."+ext)
		assert.Equal(t, want, got, ext)
		assert.True(t, got.Valid())
	}
}

func TestPdfOcrOnlyByOverride(t *testing.T) {
	for ext := range constants.ExtensionStrategies {
		assert.NotEqual(t, constants.PdfOcr, detect.Detect("", "", "f."+ext))
	}
	assert.Equal(t, constants.PdfOcr, detect.Detect("ocr", "", "f.pdf"))
}
