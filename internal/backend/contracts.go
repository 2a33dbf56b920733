// Package backend defines the inference capabilities the extraction core
// depends on and their Ollama and OpenAI-compatible implementations.
package backend

import "context"

// VisionBackend turns an image and a prompt into a description.
type VisionBackend interface {
	DescribeImage(ctx context.Context, image []byte, mimeType, prompt string) (string, error)
	HealthCheck(ctx context.Context) bool
	ModelName() string
}

// Segment is one timed span of a transcript. Times are seconds from the
// start of the submitted audio.
type Segment struct {
	Start      float64 `json:"start_secs"`
	End        float64 `json:"end_secs"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type Transcript struct {
	Text     string
	Language string
	Duration float64
	Segments []Segment
}

type TranscribeOptions struct {
	Language string // empty = auto-detect
	Filename string // hint for the server's format sniffing
	MIME     string
	Prompt   string
}

// TranscriptionBackend turns audio into timestamped segments.
type TranscriptionBackend interface {
	Transcribe(ctx context.Context, audio []byte, opts TranscribeOptions) (*Transcript, error)
	HealthCheck(ctx context.Context) bool
	ModelName() string
}

// GenerationBackend completes a prompt. It is used by the summarizer.
type GenerationBackend interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	HealthCheck(ctx context.Context) bool
	ModelName() string
}

// Set is the collection of backends built once at startup. Nil members are
// unavailable.
type Set struct {
	Vision        VisionBackend
	Transcription TranscriptionBackend
	Generation    GenerationBackend
}
