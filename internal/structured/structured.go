// Package structured implements the StructuredExtract adapter. The raw text is
// returned unaltered; parsing only produces format metadata.
package structured

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
)

// Format names reported in metadata.
const (
	FormatJSON   = "json"
	FormatNDJSON = "ndjson"
	FormatYAML   = "yaml"
	FormatTOML   = "toml"
	FormatCSV    = "csv"
	FormatTSV    = "tsv"
	FormatXML    = "xml"
	FormatICS    = "ics"
	FormatBibTeX = "bib"
	FormatRIS    = "ris"
	FormatMIDI   = "midi"
	FormatText   = "text"
)

type Adapter struct {
	logger *slog.Logger
}

var _ extract.Adapter = (*Adapter)(nil)

func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{logger: logger}
}

func (a *Adapter) Strategy() constants.Strategy    { return constants.StructuredExtract }
func (a *Adapter) Name() string                    { return "structured_extract" }
func (a *Adapter) HealthCheck(context.Context) bool { return true }

func (a *Adapter) Extract(_ context.Context, in extract.Input) (*extract.Result, error) {
	format := DetectFormat(in.Filename, in.MIME)

	var (
		txt  string
		meta map[string]any
		doc  any
	)
	if format == FormatMIDI {
		txt, meta = midiMetadata(in.Data)
	} else {
		txt = string(in.Data)
		if !utf8.ValidString(txt) {
			txt = strings.ToValidUTF8(txt, string(utf8.RuneError))
		}
		meta, doc = formatMetadata(format, txt)
	}

	res := extract.NewResult(txt)
	res.Set("format", format)
	res.Set("format_metadata", meta)

	if schemaDoc := in.Options.Map("schema"); schemaDoc != nil {
		if err := applySchema(res, format, doc, schemaDoc); err != nil {
			return nil, err
		}
	}

	a.logger.Debug("structured.extract.ok", "filename", in.Filename, "format", format, "bytes", len(in.Data))
	return res, nil
}

// DetectFormat picks the format from the MIME type, then the extension.
func DetectFormat(filename, mimeType string) string {
	m := strings.ToLower(mimeType)
	switch {
	case strings.Contains(m, "ndjson"):
		return FormatNDJSON
	case strings.Contains(m, "json"):
		return FormatJSON
	case strings.Contains(m, "yaml"):
		return FormatYAML
	case strings.Contains(m, "toml"):
		return FormatTOML
	case strings.Contains(m, "csv"):
		return FormatCSV
	case strings.Contains(m, "tab-separated"):
		return FormatTSV
	case strings.Contains(m, "xml"), strings.Contains(m, "drawio"):
		return FormatXML
	case strings.Contains(m, "calendar"):
		return FormatICS
	case strings.Contains(m, "bibtex"):
		return FormatBibTeX
	case strings.Contains(m, "research-info"):
		return FormatRIS
	case strings.Contains(m, "midi"):
		return FormatMIDI
	}

	switch constants.ExtOf(filename) {
	case "json", "geojson":
		return FormatJSON
	case "ndjson", "jsonl":
		return FormatNDJSON
	case "yaml", "yml":
		return FormatYAML
	case "toml":
		return FormatTOML
	case "csv":
		return FormatCSV
	case "tsv":
		return FormatTSV
	case "xml", "svg", "drawio":
		return FormatXML
	case "ics":
		return FormatICS
	case "bib":
		return FormatBibTeX
	case "ris":
		return FormatRIS
	case "mid", "midi":
		return FormatMIDI
	}
	return FormatText
}

// formatMetadata returns the per-format metadata and, for tree formats that
// parsed, the decoded document.
func formatMetadata(format, txt string) (map[string]any, any) {
	switch format {
	case FormatJSON:
		return jsonMetadata(txt)
	case FormatNDJSON:
		return ndjsonMetadata(txt), nil
	case FormatYAML:
		return yamlMetadata(txt)
	case FormatTOML:
		return tomlMetadata(txt)
	case FormatCSV:
		return delimitedMetadata(txt, ','), nil
	case FormatTSV:
		return delimitedMetadata(txt, '\t'), nil
	case FormatXML:
		return xmlMetadata(txt), nil
	case FormatICS:
		return icsMetadata(txt), nil
	case FormatBibTeX:
		return bibtexMetadata(txt), nil
	case FormatRIS:
		return risMetadata(txt), nil
	default:
		return map[string]any{"format": format}, nil
	}
}

func applySchema(res *extract.Result, format string, doc any, schemaDoc map[string]any) error {
	switch format {
	case FormatJSON, FormatYAML, FormatTOML:
	default:
		res.Warn("schema option ignored for format " + format)
		return nil
	}
	schema, err := extract.CompileSchema(schemaDoc)
	if err != nil {
		return common.InvalidInput("invalid schema option", err)
	}
	if doc == nil {
		res.Set("schema_valid", false)
		res.Set("schema_errors", []string{"document did not parse"})
		return nil
	}
	problems := extract.ValidateWith(schema, doc)
	res.Set("schema_valid", len(problems) == 0)
	if len(problems) > 0 {
		res.Set("schema_errors", problems)
	}
	return nil
}
