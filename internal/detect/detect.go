// Package detect maps request metadata onto an extraction strategy. No
// content sniffing happens here; it never fails.
package detect

import (
	"mime"
	"strings"

	"github.com/joseph-ayodele/content-extractor/constants"
)

var structuredMIMEs = map[string]struct{}{
	"application/json":                    {},
	"application/xml":                     {},
	"text/xml":                            {},
	"application/yaml":                    {},
	"application/x-yaml":                  {},
	"text/yaml":                           {},
	"text/csv":                            {},
	"text/tab-separated-values":           {},
	"application/toml":                    {},
	"application/x-bibtex":                {},
	"application/x-research-info-systems": {},
	"application/x-ndjson":                {},
	"application/geo+json":                {},
	"application/x-drawio":                {},
	"application/x-excalidraw+json":       {},
	"image/svg+xml":                       {},
	"text/calendar":                       {},
}

var officeMIMEs = map[string]struct{}{
	"application/rtf":       {},
	"text/rtf":              {},
	"application/epub+zip":  {},
	"application/mbox":      {},
	"text/html":             {},
	"application/xhtml+xml": {},
	"application/x-tex":     {},
}

// Detect resolves the strategy for one request: a valid override wins,
// then the MIME type, then the filename extension, then TextNative.
func Detect(override, mimeType, filename string) constants.Strategy {
	if s, ok := constants.ParseStrategy(override); ok {
		return s
	}
	ext := constants.ExtOf(filename)
	mt := normalizeMIME(mimeType)

	if mt == "" || mt == "application/octet-stream" {
		if s, ok := constants.ExtensionStrategies[ext]; ok {
			return s
		}
		return constants.TextNative
	}

	base := FromMIME(mt)
	if base == constants.TextNative {
		if s, ok := constants.ExtensionStrategies[ext]; ok && refinesText(s) {
			return s
		}
	}
	return base
}

// FromMIME maps a MIME type alone onto a strategy.
func FromMIME(mimeType string) constants.Strategy {
	mt := normalizeMIME(mimeType)
	switch {
	case mt == "application/pdf":
		return constants.PdfText
	case mt == "image/svg+xml":
		return constants.StructuredExtract
	case strings.HasPrefix(mt, "image/"):
		return constants.Vision
	case mt == "audio/midi", mt == "audio/x-midi":
		return constants.StructuredExtract
	case strings.HasPrefix(mt, "audio/"):
		return constants.AudioTranscribe
	case strings.HasPrefix(mt, "video/"):
		return constants.VideoMultimodal
	case strings.Contains(mt, "officedocument"),
		strings.Contains(mt, "msword"),
		strings.Contains(mt, "ms-excel"),
		strings.Contains(mt, "ms-powerpoint"),
		strings.Contains(mt, "opendocument"):
		return constants.OfficeConvert
	case strings.HasPrefix(mt, "message/"), strings.Contains(mt, "ms-outlook"):
		return constants.OfficeConvert
	}
	if _, ok := officeMIMEs[mt]; ok {
		return constants.OfficeConvert
	}
	if _, ok := structuredMIMEs[mt]; ok {
		return constants.StructuredExtract
	}
	return constants.TextNative
}

// refinesText lists the strategies an extension may promote a text/* MIME to.
func refinesText(s constants.Strategy) bool {
	switch s {
	case constants.CodeAst, constants.StructuredExtract, constants.OfficeConvert:
		return true
	}
	return false
}

func normalizeMIME(m string) string {
	m = strings.TrimSpace(strings.ToLower(m))
	if m == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(m); err == nil {
		return mt
	}
	if i := strings.IndexByte(m, ';'); i >= 0 {
		return strings.TrimSpace(m[:i])
	}
	return m
}
