package extract

import (
	"context"

	"github.com/joseph-ayodele/content-extractor/constants"
)

// Adapter converts the raw bytes of one content category into text and
// metadata. Implementations hold no per-call state and are safe for
// concurrent use.
type Adapter interface {
	Strategy() constants.Strategy
	Name() string
	Extract(ctx context.Context, in Input) (*Result, error)
	// HealthCheck reports whether the adapter's tools or backends are reachable.
	HealthCheck(ctx context.Context) bool
}

// Input is one extraction request as seen by an adapter.
type Input struct {
	Data     []byte
	Filename string
	MIME     string
	Options  Options
}

// WithOptions returns a copy of in whose options carry overlay.
func (in Input) WithOptions(overlay Options) Input {
	in.Options = in.Options.With(overlay)
	return in
}

// Modality labels a SubResult.
type Modality string

const (
	ModalityTranscript       Modality = "transcript"
	ModalityFrameDescription Modality = "frame_description"
	ModalityPageOCR          Modality = "page_ocr"
)

// SubResult is one timestamped or paginated part of a decomposed input.
// Offsets are seconds for temporal modalities and 1-based page numbers for page_ocr.
type SubResult struct {
	Modality    Modality `json:"modality"`
	StartOffset float64  `json:"start_offset"`
	EndOffset   float64  `json:"end_offset"`
	Text        string   `json:"text"`
	Confidence  float64  `json:"confidence"`
}

// Result is produced once per successful adapter invocation.
type Result struct {
	ExtractedText      string         `json:"extracted_text,omitempty"`
	Metadata           map[string]any `json:"metadata"`
	AIDescription      string         `json:"ai_description,omitempty"`
	PreviewData        []byte         `json:"preview_data,omitempty"`
	WasSummarized      bool           `json:"was_summarized"`
	OriginalTokenCount *int           `json:"original_token_count,omitempty"`
	SubResults         []SubResult    `json:"sub_results,omitempty"`
}

// NewResult returns a Result with initialized metadata.
func NewResult(text string) *Result {
	return &Result{ExtractedText: text, Metadata: make(map[string]any)}
}

// Set records a metadata key and returns the result for chaining.
func (r *Result) Set(key string, value any) *Result {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
	return r
}

// Warn appends to the "warnings" metadata list.
func (r *Result) Warn(msg string) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata["warnings"] = append(r.Warnings(), msg)
}

// Warnings returns the "warnings" list. Results decoded from JSON carry it
// as []any; those entries are converted.
func (r *Result) Warnings() []string {
	if r == nil {
		return nil
	}
	switch ws := r.Metadata["warnings"].(type) {
	case []string:
		return ws
	case []any:
		out := make([]string, 0, len(ws))
		for _, w := range ws {
			if s, ok := w.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// MetaBool reads a boolean metadata flag.
func (r *Result) MetaBool(key string) bool {
	if r == nil {
		return false
	}
	b, _ := r.Metadata[key].(bool)
	return b
}
