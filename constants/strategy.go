package constants

import "strings"

// Strategy is the closed set of content-processing categories.
type Strategy string

// Stable values (used in config documents, metrics and health service names).
const (
	TextNative        Strategy = "text_native"
	PdfText           Strategy = "pdf_text"
	PdfOcr            Strategy = "pdf_ocr"
	Vision            Strategy = "vision"
	AudioTranscribe   Strategy = "audio_transcribe"
	VideoMultimodal   Strategy = "video_multimodal"
	CodeAst           Strategy = "code_ast"
	OfficeConvert     Strategy = "office_convert"
	StructuredExtract Strategy = "structured_extract"
)

var allStrategies = []Strategy{
	TextNative,
	PdfText,
	PdfOcr,
	Vision,
	AudioTranscribe,
	VideoMultimodal,
	CodeAst,
	OfficeConvert,
	StructuredExtract,
}

// AllStrategies returns the nine strategies in declaration order.
func AllStrategies() []Strategy {
	out := make([]Strategy, len(allStrategies))
	copy(out, allStrategies)
	return out
}

func (s Strategy) String() string { return string(s) }

// Valid reports whether s is one of the nine known strategies.
func (s Strategy) Valid() bool {
	for _, v := range allStrategies {
		if v == s {
			return true
		}
	}
	return false
}

var strategyAliases = map[string]Strategy{
	"textnative":        TextNative,
	"text":              TextNative,
	"none":              TextNative,
	"pdftext":           PdfText,
	"pdf":               PdfText,
	"pdfocr":            PdfOcr,
	"pdf_scanned":       PdfOcr,
	"ocr":               PdfOcr,
	"image":             Vision,
	"audiotranscribe":   AudioTranscribe,
	"audio":             AudioTranscribe,
	"videomultimodal":   VideoMultimodal,
	"video":             VideoMultimodal,
	"codeast":           CodeAst,
	"code_analysis":     CodeAst,
	"code":              CodeAst,
	"officeconvert":     OfficeConvert,
	"pandoc":            OfficeConvert,
	"office":            OfficeConvert,
	"structuredextract": StructuredExtract,
	"structured_data":   StructuredExtract,
	"structured":        StructuredExtract,
}

// ParseStrategy maps a strategy name or one of its aliases to a Strategy.
func ParseStrategy(input string) (Strategy, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}
	if s := Strategy(normalized); s.Valid() {
		return s, true
	}
	if s, ok := strategyAliases[normalized]; ok {
		return s, true
	}
	return "", false
}
