// Package video implements the VideoMultimodal adapter. The audio track and
// the keyframes are processed concurrently and fused into one
// chronological document.
package video

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/audio"
	"github.com/joseph-ayodele/content-extractor/internal/backend"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
	"github.com/joseph-ayodele/content-extractor/internal/fusion"
	"github.com/joseph-ayodele/content-extractor/internal/progress"
	"github.com/joseph-ayodele/content-extractor/internal/runner"
)

const framePrompt = "Describe this video frame in detail. What is happening in this scene?"

// Degradation values reported under the "degraded" metadata key.
const (
	DegradedNone           = "none"
	DegradedTranscriptOnly = "transcript_only"
	DegradedFramesOnly     = "frames_only"
	DegradedMetadataOnly   = "metadata_only"
)

type Config struct {
	Ffmpeg            string
	Ffprobe           string
	KeyframeInterval  time.Duration
	SceneThreshold    float64
	SceneMaxDuration  time.Duration
	MaxFrames         int
	HybridMinInterval time.Duration
	FusionWindow      time.Duration
	MaxInFlight       int
	DescribeFrames    bool
	CmdTimeout        time.Duration
	TempDir           string
}

func ConfigFrom(cfg *common.Config) Config {
	return Config{
		Ffmpeg:            cfg.Tools.Ffmpeg,
		Ffprobe:           cfg.Tools.Ffprobe,
		KeyframeInterval:  cfg.Video.KeyframeInterval,
		SceneThreshold:    cfg.Video.SceneThreshold,
		SceneMaxDuration:  cfg.Video.SceneMaxDuration,
		MaxFrames:         cfg.Video.MaxFrames,
		HybridMinInterval: cfg.Video.HybridMinInterval,
		FusionWindow:      cfg.Video.FusionWindow,
		MaxInFlight:       cfg.Vision.MaxInFlight,
		DescribeFrames:    cfg.Video.DescribeFramesEnabled,
		CmdTimeout:        cfg.Tools.CmdTimeout,
		TempDir:           cfg.Tools.TempDir,
	}
}

func (c Config) withDefaults() Config {
	if c.Ffmpeg == "" {
		c.Ffmpeg = "ffmpeg"
	}
	if c.Ffprobe == "" {
		c.Ffprobe = "ffprobe"
	}
	if c.KeyframeInterval <= 0 {
		c.KeyframeInterval = constants.KeyframeInterval
	}
	if c.SceneThreshold <= 0 {
		c.SceneThreshold = constants.SceneThreshold
	}
	if c.SceneMaxDuration <= 0 {
		c.SceneMaxDuration = constants.SceneMaxVideoDuration
	}
	if c.MaxFrames <= 0 {
		c.MaxFrames = constants.MaxKeyframes
	}
	if c.HybridMinInterval <= 0 {
		c.HybridMinInterval = constants.HybridMinFrameInterval
	}
	if c.FusionWindow <= 0 {
		c.FusionWindow = constants.FusionWindow
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = constants.VisionMaxInFlight
	}
	if c.CmdTimeout <= 0 {
		c.CmdTimeout = constants.CmdTimeout
	}
	return c
}

type Adapter struct {
	cfg         Config
	vision      backend.VisionBackend
	transcriber *audio.Transcriber
	runner      runner.Runner
	logger      *slog.Logger
}

var _ extract.Adapter = (*Adapter)(nil)

// New builds the adapter. vb and the transcriber's backend may be nil; the
// adapter then degrades to the modalities that remain.
func New(cfg Config, vb backend.VisionBackend, tr *audio.Transcriber, r runner.Runner, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if tr == nil {
		tr = audio.NewTranscriber(audio.Config{}, nil, r, logger)
	}
	return &Adapter{cfg: cfg.withDefaults(), vision: vb, transcriber: tr, runner: r, logger: logger}
}

func (a *Adapter) Strategy() constants.Strategy { return constants.VideoMultimodal }
func (a *Adapter) Name() string                 { return "video_multimodal" }

// HealthCheck requires ffmpeg and ffprobe. Backends are optional.
func (a *Adapter) HealthCheck(ctx context.Context) bool {
	return runner.Probe(ctx, a.runner, a.cfg.Ffmpeg, "-version") &&
		runner.Probe(ctx, a.runner, a.cfg.Ffprobe, "-version")
}

func (a *Adapter) Extract(ctx context.Context, in extract.Input) (*extract.Result, error) {
	if len(in.Data) == 0 {
		return nil, common.InvalidInputf("cannot extract from empty video data")
	}
	start := time.Now()
	logger := a.logger.With("filename", in.Filename)

	scratch, err := runner.NewScratch(a.cfg.TempDir, "video-*", logger)
	if err != nil {
		return nil, err
	}
	defer scratch.Close()
	input, err := scratch.Write("input"+suffix(in.Filename), in.Data)
	if err != nil {
		return nil, err
	}

	progress.Report(ctx, 22, "Probing video container")
	info, err := audio.ProbeMedia(ctx, a.runner, a.cfg.Ffprobe, input, a.cfg.CmdTimeout)
	if err != nil {
		logger.Error("video.probe.failed", "error", err)
		return nil, err
	}

	res := extract.NewResult("")
	res.Set("filename", in.Filename).
		Set("mime_type", in.MIME).
		Set("size_bytes", len(in.Data)).
		Set("duration_secs", info.Duration).
		Set("container", info.FormatName).
		Set("has_audio", info.HasAudio()).
		Set("has_video", info.HasVideo())
	if v := info.First("video"); v != nil {
		res.Set("width", v.Width).Set("height", v.Height).Set("video_codec", v.CodecName)
	}
	if au := info.First("audio"); au != nil {
		res.Set("audio_codec", au.CodecName)
	}

	wantAudio := info.HasAudio() && in.Options.Bool("extract_audio", true)
	wantFrames := info.HasVideo() && in.Options.Bool("extract_keyframes", true) &&
		in.Options.Bool("describe_frames", a.cfg.DescribeFrames)
	metadataOnly := in.Options.Bool("metadata_only", false)

	audioOK := wantAudio && !metadataOnly && a.transcriber.Available(ctx)
	visionOK := wantFrames && !metadataOnly && a.vision != nil && a.vision.HealthCheck(ctx)
	if wantAudio && !audioOK && !metadataOnly {
		res.Warn("transcription backend unavailable; audio skipped")
	}
	if wantFrames && !visionOK && !metadataOnly {
		res.Warn("vision backend unavailable; keyframes skipped")
	}
	ks := planKeyframes(a.cfg, in.Options, info.Duration)
	res.Set("keyframe_strategy", ks.Metadata())

	var (
		transcript          *audio.Transcription
		frames              []describedFrame
		frameWarnings       []string
		audioErr, framesErr error
	)
	if audioOK || visionOK {
		progress.Report(ctx, 25, "Extracting audio and keyframes")
		// a failed sub-task degrades the output instead of cancelling its sibling
		var g errgroup.Group
		if audioOK {
			g.Go(func() error {
				transcript, audioErr = a.transcribe(ctx, scratch, input, info.Duration, in.Options)
				return nil
			})
		}
		if visionOK {
			g.Go(func() error {
				frames, frameWarnings, framesErr = a.describeKeyframes(ctx, scratch, input, ks)
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, w := range frameWarnings {
			res.Warn(w)
		}
		if len(frameWarnings) > 0 {
			res.Set("frames_skipped", len(frameWarnings))
		}
		switch {
		case audioErr != nil && (framesErr != nil || !visionOK):
			logger.Error("video.extract.failed", "error", audioErr, "frames_error", framesErr, "elapsed_ms", time.Since(start).Milliseconds())
			return nil, fmt.Errorf("audio: %w", audioErr)
		case framesErr != nil && !audioOK:
			logger.Error("video.extract.failed", "error", framesErr, "elapsed_ms", time.Since(start).Milliseconds())
			return nil, fmt.Errorf("keyframes: %w", framesErr)
		case audioErr != nil:
			logger.Warn("video.audio.failed", "error", audioErr)
			res.Warn("transcription failed: " + audioErr.Error())
			audioOK = false
		case framesErr != nil:
			logger.Warn("video.keyframes.failed", "error", framesErr)
			res.Warn("keyframe description failed: " + framesErr.Error())
			visionOK = false
		}
	}
	degraded := degradation(wantAudio, wantFrames, audioOK, visionOK, metadataOnly)
	res.Set("degraded", degraded)

	progress.Report(ctx, 78, "Fusing modalities")
	var events []fusion.Event
	var parts []extract.SubResult
	var modalities []string
	if transcript != nil {
		modalities = append(modalities, string(extract.ModalityTranscript))
		for _, s := range transcript.Segments {
			events = append(events, fusion.Event{Start: s.Start, End: s.End, Modality: extract.ModalityTranscript, Content: s.Text})
		}
		parts = append(parts, audio.TranscriptParts(transcript.Segments)...)
		res.Set("transcript_segments", len(transcript.Segments)).
			Set("transcription_model", a.transcriber.ModelName())
		if transcript.Language != "" {
			res.Set("detected_language", transcript.Language)
		}
		for _, w := range transcript.Warnings {
			res.Warn(w)
		}
	}
	if frames != nil {
		modalities = append(modalities, string(extract.ModalityFrameDescription))
		for _, f := range frames {
			events = append(events, fusion.Event{Start: f.Timestamp, End: f.Timestamp, Modality: extract.ModalityFrameDescription, Content: f.Description})
			if f.Description == "" {
				continue
			}
			parts = append(parts, extract.SubResult{
				Modality:    extract.ModalityFrameDescription,
				StartOffset: f.Timestamp,
				EndOffset:   f.Timestamp,
				Text:        f.Description,
			})
		}
		res.Set("vision_model", a.vision.ModelName())
	}
	if modalities == nil {
		modalities = []string{}
	}

	doc := fusion.Fuse(events, fusion.Options{Window: in.Options.Seconds("fusion_window_secs", a.cfg.FusionWindow)})
	res.ExtractedText = doc.Text
	res.SubResults = extract.SortSubResults(parts)
	res.Set("frame_count", len(frames)).
		Set("modalities", modalities).
		Set("window_count", doc.WindowCount).
		Set("token_estimate", doc.TokenEstimate)

	logger.Info("video.extract.ok",
		"duration_secs", info.Duration,
		"frames", len(frames),
		"modalities", modalities,
		"degraded", degraded,
		"windows", doc.WindowCount,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func degradation(wantAudio, wantFrames, audioOK, visionOK, metadataOnly bool) string {
	switch {
	case metadataOnly:
		return DegradedMetadataOnly
	case !audioOK && !visionOK:
		return DegradedMetadataOnly
	case wantFrames && !visionOK:
		return DegradedTranscriptOnly
	case wantAudio && !audioOK:
		return DegradedFramesOnly
	default:
		return DegradedNone
	}
}

func (a *Adapter) transcribe(ctx context.Context, scratch *runner.Scratch, input string, duration float64, opts extract.Options) (*audio.Transcription, error) {
	wav := scratch.Path("audio.wav")
	cctx, cancel := context.WithTimeout(ctx, 3*a.cfg.CmdTimeout)
	_, _, err := a.runner.Run(cctx, a.cfg.Ffmpeg,
		"-v", "error", "-y",
		"-i", input,
		"-vn", "-ac", "1", "-ar", strconv.Itoa(constants.AudioSampleRate),
		"-f", "wav", wav,
	)
	cancel()
	if err != nil {
		return nil, err
	}
	t, err := a.transcriber.Transcribe(ctx, scratch, audio.Request{
		Path:         wav,
		Filename:     "audio.wav",
		MIME:         "audio/wav",
		Duration:     duration,
		Language:     opts.String("language", ""),
		Threshold:    opts.Seconds("chunk_threshold_secs", 0),
		Length:       opts.Seconds("chunk_secs", 0),
		Overlap:      audio.OverlapOption(opts, a.transcriber.DefaultOverlap()),
		ProgressFrom: 30,
		ProgressTo:   55,
	})
	if err != nil {
		return nil, err
	}
	a.logger.Debug("video.audio.ok", "segments", len(t.Segments), "chunks", t.Chunks)
	return t, nil
}

type describedFrame struct {
	Timestamp   float64
	Description string
}

// describeKeyframes extracts frames and describes them with at most
// MaxInFlight concurrent vision calls. A frame whose description fails is
// skipped with a warning; the call fails only when every frame failed.
func (a *Adapter) describeKeyframes(ctx context.Context, scratch *runner.Scratch, input string, ks KeyframeStrategy) ([]describedFrame, []string, error) {
	frames, err := a.extractKeyframes(ctx, scratch, input, ks)
	if err != nil {
		return nil, nil, err
	}
	a.logger.Info("video.keyframes.ok", "mode", ks.Mode, "frames", len(frames))

	described := make([]describedFrame, len(frames))
	errs := make([]error, len(frames))
	sem := semaphore.NewWeighted(int64(a.cfg.MaxInFlight))
	var (
		wg   sync.WaitGroup
		done atomic.Int64
	)
	for i, f := range frames {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			data, err := os.ReadFile(f.Path)
			if err != nil {
				errs[i] = common.Internal("read frame", err)
				return
			}
			prompt := fmt.Sprintf("%s The frame is at %s in the video.", framePrompt, fusion.Stamp(f.Timestamp))
			desc, err := a.vision.DescribeImage(ctx, data, "image/jpeg", prompt)
			if err != nil {
				errs[i] = err
				return
			}
			described[i] = describedFrame{Timestamp: f.Timestamp, Description: desc}
			n := int(done.Add(1))
			progress.Report(ctx, progress.Span(55, 75, n, len(frames)), fmt.Sprintf("Described frame %d/%d", n, len(frames)))
		}()
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var (
		out      []describedFrame
		warnings []string
		firstErr error
	)
	for i, f := range frames {
		if errs[i] != nil {
			a.logger.Warn("video.frame.failed", "frame", i, "timestamp", f.Timestamp, "error", errs[i])
			warnings = append(warnings, fmt.Sprintf("frame %d at %s skipped: %v", i, fusion.Stamp(f.Timestamp), errs[i]))
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		out = append(out, described[i])
	}
	if len(frames) > 0 && len(out) == 0 {
		return nil, warnings, fmt.Errorf("all %d frames failed: %w", len(frames), firstErr)
	}
	if out == nil {
		out = []describedFrame{}
	}
	return out, warnings, nil
}

func suffix(filename string) string {
	if ext := constants.ExtOf(filename); ext != "" {
		return "." + ext
	}
	return ".mp4"
}
