// Package audio implements the AudioTranscribe adapter and the chunked
// Transcriber it shares with the video adapter.
package audio

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/backend"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
	"github.com/joseph-ayodele/content-extractor/internal/progress"
	"github.com/joseph-ayodele/content-extractor/internal/runner"
)

type Config struct {
	Ffmpeg         string
	Ffprobe        string
	ChunkThreshold time.Duration
	ChunkLength    time.Duration
	ChunkOverlap   time.Duration
	Language       string
	CmdTimeout     time.Duration
	TempDir        string
}

func ConfigFrom(cfg *common.Config) Config {
	return Config{
		Ffmpeg:         cfg.Tools.Ffmpeg,
		Ffprobe:        cfg.Tools.Ffprobe,
		ChunkThreshold: cfg.Audio.ChunkThreshold,
		ChunkLength:    cfg.Audio.ChunkLength,
		ChunkOverlap:   cfg.Audio.ChunkOverlap,
		Language:       cfg.Transcription.Language,
		CmdTimeout:     cfg.Tools.CmdTimeout,
		TempDir:        cfg.Tools.TempDir,
	}
}

func (c Config) withDefaults() Config {
	if c.Ffmpeg == "" {
		c.Ffmpeg = "ffmpeg"
	}
	if c.Ffprobe == "" {
		c.Ffprobe = "ffprobe"
	}
	if c.ChunkThreshold <= 0 {
		c.ChunkThreshold = constants.AudioChunkThreshold
	}
	if c.ChunkLength <= 0 {
		c.ChunkLength = constants.AudioChunkLength
	}
	if c.ChunkOverlap <= 0 {
		c.ChunkOverlap = constants.AudioChunkOverlap
	}
	if c.CmdTimeout <= 0 {
		c.CmdTimeout = constants.CmdTimeout
	}
	return c
}

type Adapter struct {
	cfg         Config
	transcriber *Transcriber
	runner      runner.Runner
	logger      *slog.Logger
}

var _ extract.Adapter = (*Adapter)(nil)

// New builds the adapter. tb may be nil, in which case only metadata-only
// extraction succeeds.
func New(cfg Config, tb backend.TranscriptionBackend, r runner.Runner, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Adapter{cfg: cfg, transcriber: NewTranscriber(cfg, tb, r, logger), runner: r, logger: logger}
}

func (a *Adapter) Strategy() constants.Strategy { return constants.AudioTranscribe }
func (a *Adapter) Name() string                 { return "audio_transcribe" }

func (a *Adapter) HealthCheck(ctx context.Context) bool {
	return a.transcriber.Available(ctx)
}

func (a *Adapter) Extract(ctx context.Context, in extract.Input) (*extract.Result, error) {
	if len(in.Data) == 0 {
		return nil, common.InvalidInputf("cannot transcribe empty audio data")
	}
	start := time.Now()

	scratch, err := runner.NewScratch(a.cfg.TempDir, "audio-*", a.logger)
	if err != nil {
		return nil, err
	}
	defer scratch.Close()
	path, err := scratch.Write("input"+extSuffix(in.Filename), in.Data)
	if err != nil {
		return nil, err
	}

	res := extract.NewResult("")
	res.Set("filename", in.Filename).Set("mime_type", in.MIME).Set("size_bytes", len(in.Data))

	progress.Report(ctx, 25, "Probing audio container")
	var duration float64
	info, perr := ProbeMedia(ctx, a.runner, a.cfg.Ffprobe, path, a.cfg.CmdTimeout)
	if perr != nil {
		a.logger.Warn("audio.probe.failed", "filename", in.Filename, "error", perr)
		res.Warn("ffprobe: " + perr.Error())
	} else {
		duration = info.Duration
		for k, v := range info.Metadata() {
			res.Set(k, v)
		}
	}

	if in.Options.Bool("metadata_only", false) {
		res.Set("transcription_unavailable", true)
		a.logger.Info("audio.extract.metadata_only", "filename", in.Filename, "elapsed_ms", time.Since(start).Milliseconds())
		return res, nil
	}

	tr, err := a.transcriber.Transcribe(ctx, scratch, Request{
		Path:         path,
		Data:         in.Data,
		Filename:     in.Filename,
		MIME:         in.MIME,
		Duration:     duration,
		Language:     in.Options.String("language", a.cfg.Language),
		Threshold:    in.Options.Seconds("chunk_threshold_secs", a.cfg.ChunkThreshold),
		Length:       in.Options.Seconds("chunk_secs", a.cfg.ChunkLength),
		Overlap:      OverlapOption(in.Options, a.cfg.ChunkOverlap),
		ProgressFrom: 30,
		ProgressTo:   75,
	})
	if err != nil {
		a.logger.Error("audio.transcribe.failed", "filename", in.Filename, "error", err)
		return nil, err
	}

	res.ExtractedText = RenderTimestamped(tr.Segments)
	if res.ExtractedText == "" {
		res.ExtractedText = strings.TrimSpace(tr.Text)
	}
	res.SubResults = TranscriptParts(tr.Segments)
	res.Set("segment_count", len(tr.Segments)).
		Set("model", a.transcriber.ModelName()).
		Set("chunked", tr.Chunks > 1).
		Set("chunk_count", tr.Chunks)
	if tr.Language != "" {
		res.Set("detected_language", tr.Language)
	}
	for _, w := range tr.Warnings {
		res.Warn(w)
	}

	a.logger.Info("audio.extract.ok",
		"filename", in.Filename,
		"duration_secs", duration,
		"segments", len(tr.Segments),
		"chunks", tr.Chunks,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// OverlapOption reads "overlap_secs", where an explicit 0 disables overlap.
func OverlapOption(o extract.Options, def time.Duration) time.Duration {
	if !o.Has("overlap_secs") {
		return def
	}
	f := o.Float("overlap_secs", 0)
	if f <= 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

// TranscriptParts converts segments into ordered transcript sub-results.
func TranscriptParts(segs []backend.Segment) []extract.SubResult {
	if len(segs) == 0 {
		return nil
	}
	parts := make([]extract.SubResult, 0, len(segs))
	for _, s := range segs {
		txt := strings.TrimSpace(s.Text)
		if txt == "" {
			continue
		}
		parts = append(parts, extract.SubResult{
			Modality:    extract.ModalityTranscript,
			StartOffset: s.Start,
			EndOffset:   s.End,
			Text:        txt,
			Confidence:  s.Confidence,
		})
	}
	return extract.SortSubResults(parts)
}

// RenderTimestamped renders one "[hh:mm:ss] text" line per segment.
func RenderTimestamped(segs []backend.Segment) string {
	var b strings.Builder
	for _, s := range segs {
		txt := strings.TrimSpace(s.Text)
		if txt == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%s] %s", Clock(s.Start), txt)
	}
	return b.String()
}

// Clock formats seconds as hh:mm:ss.
func Clock(secs float64) string {
	if secs < 0 {
		secs = 0
	}
	total := int(math.Floor(secs))
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total/60%60, total%60)
}

func extSuffix(filename string) string {
	if ext := constants.ExtOf(filename); ext != "" {
		return "." + ext
	}
	return ""
}
