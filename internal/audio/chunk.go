package audio

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/backend"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/progress"
	"github.com/joseph-ayodele/content-extractor/internal/runner"
)

// chunk is one overlapping slice of a long recording. Segments whose
// midpoint falls in [keepFrom, keepTo) belong to this chunk; the cut points
// sit in the middle of each overlap.
type chunk struct {
	Index    int
	Start    float64
	Length   float64
	KeepFrom float64
	KeepTo   float64
}

func planChunks(duration, length, overlap float64) []chunk {
	if duration <= 0 || length <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= length {
		overlap = 0
	}
	step := length - overlap
	var out []chunk
	for start := 0.0; start < duration; start += step {
		out = append(out, chunk{Index: len(out), Start: start, Length: math.Min(length, duration-start)})
		if start+length >= duration {
			break
		}
	}
	for i := range out {
		if i > 0 {
			out[i].KeepFrom = out[i].Start + overlap/2
		}
		if i == len(out)-1 {
			out[i].KeepTo = math.Inf(1)
		} else {
			out[i].KeepTo = out[i+1].Start + overlap/2
		}
	}
	return out
}

// Request describes one recording to transcribe.
type Request struct {
	Path     string
	Data     []byte // optional; read from Path when nil
	Filename string
	MIME     string
	Duration float64 // seconds, 0 when unknown
	Language string

	Threshold time.Duration
	Length    time.Duration
	Overlap   time.Duration

	// progress window for per-chunk markers
	ProgressFrom, ProgressTo int
}

// Transcription is the merged transcript of a recording.
type Transcription struct {
	Text     string
	Language string
	Segments []backend.Segment
	Chunks   int
	Warnings []string
}

// Transcriber transcribes recordings of any length, splitting long ones
// into overlapping chunks. It is shared by the audio and video adapters.
type Transcriber struct {
	cfg     Config
	backend backend.TranscriptionBackend
	runner  runner.Runner
	logger  *slog.Logger
}

func NewTranscriber(cfg Config, tb backend.TranscriptionBackend, r runner.Runner, logger *slog.Logger) *Transcriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcriber{cfg: cfg.withDefaults(), backend: tb, runner: r, logger: logger}
}

func (t *Transcriber) Available(ctx context.Context) bool {
	return t.backend != nil && t.backend.HealthCheck(ctx)
}

// DefaultOverlap is the configured chunk overlap.
func (t *Transcriber) DefaultOverlap() time.Duration { return t.cfg.ChunkOverlap }

func (t *Transcriber) ModelName() string {
	if t.backend == nil {
		return ""
	}
	return t.backend.ModelName()
}

func (t *Transcriber) Transcribe(ctx context.Context, scratch *runner.Scratch, req Request) (*Transcription, error) {
	if t.backend == nil {
		return nil, common.DependencyMissing("no transcription backend configured", nil)
	}
	if req.Threshold <= 0 {
		req.Threshold = t.cfg.ChunkThreshold
	}
	if req.Length <= 0 {
		req.Length = t.cfg.ChunkLength
	}
	if req.Overlap < 0 {
		req.Overlap = 0
	}
	if req.Language == "" {
		req.Language = t.cfg.Language
	}

	if req.Duration <= req.Threshold.Seconds() {
		return t.single(ctx, req)
	}
	if !runner.Probe(ctx, t.runner, t.cfg.Ffmpeg, "-version") {
		t.logger.Warn("audio.chunk.ffmpeg_missing", "filename", req.Filename, "duration_secs", req.Duration)
		tr, err := t.single(ctx, req)
		if err != nil {
			return nil, err
		}
		tr.Warnings = append(tr.Warnings, "ffmpeg unavailable; long recording transcribed without chunking")
		return tr, nil
	}
	return t.chunked(ctx, scratch, req)
}

func (t *Transcriber) single(ctx context.Context, req Request) (*Transcription, error) {
	data := req.Data
	if data == nil {
		b, err := os.ReadFile(req.Path)
		if err != nil {
			return nil, common.Internal("read audio", err)
		}
		data = b
	}
	tr, err := t.backend.Transcribe(ctx, data, backend.TranscribeOptions{
		Language: req.Language,
		Filename: req.Filename,
		MIME:     req.MIME,
	})
	if err != nil {
		return nil, err
	}
	segs := tr.Segments
	if len(segs) == 0 && strings.TrimSpace(tr.Text) != "" {
		end := tr.Duration
		if end == 0 {
			end = req.Duration
		}
		segs = []backend.Segment{{Start: 0, End: end, Text: strings.TrimSpace(tr.Text), Confidence: 1}}
	}
	progress.Report(ctx, req.ProgressTo, "Transcription complete")
	return &Transcription{Text: tr.Text, Language: firstNonEmpty(tr.Language, req.Language), Segments: segs, Chunks: 1}, nil
}

func (t *Transcriber) chunked(ctx context.Context, scratch *runner.Scratch, req Request) (*Transcription, error) {
	chunks := planChunks(req.Duration, req.Length.Seconds(), req.Overlap.Seconds())
	out := &Transcription{Chunks: len(chunks)}
	t.logger.Info("audio.chunk.plan",
		"filename", req.Filename,
		"duration_secs", req.Duration,
		"chunks", len(chunks),
		"chunk_secs", req.Length.Seconds(),
		"overlap_secs", req.Overlap.Seconds(),
	)

	var texts []string
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := t.cut(ctx, scratch, req.Path, c)
		if err != nil {
			return nil, err
		}
		tr, err := t.backend.Transcribe(ctx, data, backend.TranscribeOptions{
			Language: req.Language,
			Filename: fmt.Sprintf("chunk-%03d.wav", c.Index),
			MIME:     "audio/wav",
		})
		if err != nil {
			return nil, fmt.Errorf("transcribe chunk %d: %w", c.Index, err)
		}
		if out.Language == "" {
			out.Language = tr.Language
		}
		for _, s := range tr.Segments {
			s.Start += c.Start
			s.End += c.Start
			mid := (s.Start + s.End) / 2
			if mid < c.KeepFrom || mid >= c.KeepTo {
				continue
			}
			out.Segments = append(out.Segments, s)
			texts = append(texts, strings.TrimSpace(s.Text))
		}
		progress.Report(ctx, progress.Span(req.ProgressFrom, req.ProgressTo, c.Index+1, len(chunks)),
			fmt.Sprintf("Transcribed chunk %d/%d", c.Index+1, len(chunks)))
	}
	out.Text = strings.Join(texts, " ")
	out.Language = firstNonEmpty(out.Language, req.Language)
	return out, nil
}

// cut extracts one chunk as 16 kHz mono WAV and returns its bytes.
func (t *Transcriber) cut(ctx context.Context, scratch *runner.Scratch, path string, c chunk) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.CmdTimeout)
	defer cancel()

	dst := scratch.Path(fmt.Sprintf("chunk-%03d.wav", c.Index))
	defer os.Remove(dst)
	_, _, err := t.runner.Run(ctx, t.cfg.Ffmpeg,
		"-v", "error", "-y",
		"-ss", formatSecs(c.Start),
		"-t", formatSecs(c.Length),
		"-i", path,
		"-vn", "-ac", "1", "-ar", strconv.Itoa(constants.AudioSampleRate),
		"-f", "wav", dst,
	)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		return nil, common.ToolFailed(fmt.Sprintf("ffmpeg produced no chunk %s", filepath.Base(dst)), err, false)
	}
	return data, nil
}

func formatSecs(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
