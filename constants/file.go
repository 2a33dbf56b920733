package constants

import (
	"path/filepath"
	"strings"
)

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ExtOf returns the normalized extension of a filename ("" when none).
func ExtOf(filename string) string {
	return NormalizeExt(filepath.Ext(filename))
}

// ExtensionStrategies maps file extensions to their extraction strategy.
// Used when the MIME type carries no information.
var ExtensionStrategies = map[string]Strategy{
	// documents
	"pdf": PdfText,

	// images
	"jpg": Vision, "jpeg": Vision, "png": Vision, "gif": Vision, "webp": Vision,
	"bmp": Vision, "tif": Vision, "tiff": Vision, "heic": Vision, "heif": Vision,

	// audio
	"mp3": AudioTranscribe, "wav": AudioTranscribe, "m4a": AudioTranscribe, "ogg": AudioTranscribe,
	"flac": AudioTranscribe, "aac": AudioTranscribe, "opus": AudioTranscribe, "wma": AudioTranscribe,

	// video
	"mp4": VideoMultimodal, "mov": VideoMultimodal, "mkv": VideoMultimodal, "webm": VideoMultimodal,
	"avi": VideoMultimodal, "m4v": VideoMultimodal, "wmv": VideoMultimodal,

	// office + mail
	"doc": OfficeConvert, "docx": OfficeConvert, "xls": OfficeConvert, "xlsx": OfficeConvert,
	"xlsm": OfficeConvert, "ppt": OfficeConvert, "pptx": OfficeConvert, "odt": OfficeConvert,
	"ods": OfficeConvert, "odp": OfficeConvert, "rtf": OfficeConvert, "epub": OfficeConvert,
	"tex": OfficeConvert, "latex": OfficeConvert, "html": OfficeConvert, "htm": OfficeConvert,
	"eml": OfficeConvert, "mbox": OfficeConvert,

	// structured
	"json": StructuredExtract, "geojson": StructuredExtract, "ndjson": StructuredExtract,
	"yaml": StructuredExtract, "yml": StructuredExtract, "toml": StructuredExtract,
	"csv": StructuredExtract, "tsv": StructuredExtract, "xml": StructuredExtract,
	"svg": StructuredExtract, "drawio": StructuredExtract, "ics": StructuredExtract,
	"bib": StructuredExtract, "ris": StructuredExtract, "mid": StructuredExtract,
	"midi": StructuredExtract,

	// code
	"rs": CodeAst, "py": CodeAst, "js": CodeAst, "mjs": CodeAst, "cjs": CodeAst,
	"ts": CodeAst, "mts": CodeAst, "cts": CodeAst, "tsx": CodeAst, "jsx": CodeAst,
	"go": CodeAst, "java": CodeAst, "c": CodeAst, "h": CodeAst, "cpp": CodeAst,
	"cc": CodeAst, "hpp": CodeAst, "rb": CodeAst, "php": CodeAst, "swift": CodeAst,
	"kt": CodeAst, "cs": CodeAst, "scala": CodeAst, "lua": CodeAst, "sh": CodeAst,
	"bash": CodeAst, "zig": CodeAst, "hs": CodeAst,

	// plain text
	"txt": TextNative, "md": TextNative, "markdown": TextNative, "rst": TextNative,
	"org": TextNative, "adoc": TextNative, "log": TextNative,
}

// AllowedExtensions returns the extension set used for directory discovery.
func AllowedExtensions() map[string]struct{} {
	out := make(map[string]struct{}, len(ExtensionStrategies))
	for ext := range ExtensionStrategies {
		out[ext] = struct{}{}
	}
	return out
}
