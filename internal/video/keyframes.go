package video

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
	"github.com/joseph-ayodele/content-extractor/internal/runner"
)

const (
	ModeInterval = "interval"
	ModeScene    = "scene"
	ModeHybrid   = "hybrid"
)

// KeyframeStrategy selects which frames are sent to the vision backend.
type KeyframeStrategy struct {
	Mode        string  `json:"mode"`
	Interval    float64 `json:"interval_secs,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
	MinInterval float64 `json:"min_interval_secs,omitempty"`
	MaxFrames   int     `json:"max_frames"`
}

// Metadata is the strategy as reported in result metadata.
func (k KeyframeStrategy) Metadata() map[string]any {
	m := map[string]any{"mode": k.Mode, "max_frames": k.MaxFrames}
	switch k.Mode {
	case ModeInterval:
		m["interval_secs"] = k.Interval
	case ModeScene:
		m["threshold"] = k.Threshold
	case ModeHybrid:
		m["threshold"] = k.Threshold
		m["min_interval_secs"] = k.MinInterval
	}
	return m
}

// planKeyframes picks scene detection for videos no longer than the scene
// limit and interval sampling otherwise. An explicit keyframe_strategy
// option wins. Interval sampling is stretched so at most MaxFrames frames
// are produced.
func planKeyframes(cfg Config, opts extract.Options, duration float64) KeyframeStrategy {
	ks := KeyframeStrategy{
		Interval:    opts.Float("keyframe_interval", cfg.KeyframeInterval.Seconds()),
		Threshold:   opts.Float("scene_threshold", cfg.SceneThreshold),
		MinInterval: cfg.HybridMinInterval.Seconds(),
		MaxFrames:   opts.Int("max_frames", cfg.MaxFrames),
	}
	if explicit := opts.Map("keyframe_strategy"); explicit != nil {
		eo := extract.Options(explicit)
		ks.Mode = normalizeMode(eo.String("mode", ModeInterval))
		ks.Interval = eo.Float("interval_secs", ks.Interval)
		ks.Threshold = eo.Float("threshold", eo.Float("scene_threshold", ks.Threshold))
		ks.MinInterval = eo.Float("min_interval_secs", ks.MinInterval)
		ks.MaxFrames = eo.Int("max_frames", ks.MaxFrames)
	} else if duration > 0 && duration <= cfg.SceneMaxDuration.Seconds() {
		ks.Mode = ModeScene
	} else {
		ks.Mode = ModeInterval
	}

	if ks.MaxFrames <= 0 {
		ks.MaxFrames = cfg.MaxFrames
	}
	ks.Threshold = math.Min(math.Max(ks.Threshold, 0.01), 1)
	if ks.MinInterval <= 0 {
		ks.MinInterval = cfg.HybridMinInterval.Seconds()
	}
	if ks.Interval <= 0 {
		ks.Interval = cfg.KeyframeInterval.Seconds()
	}
	if ks.Mode == ModeInterval && duration > 0 {
		ks.Interval = math.Max(ks.Interval, math.Ceil(duration/float64(ks.MaxFrames)))
	}
	if ks.Mode != ModeInterval {
		ks.Interval = 0
	}
	if ks.Mode != ModeHybrid {
		ks.MinInterval = 0
	}
	if ks.Mode == ModeInterval {
		ks.Threshold = 0
	}
	return ks
}

func normalizeMode(m string) string {
	switch strings.ToLower(strings.TrimSpace(m)) {
	case "scene", "scene_detection":
		return ModeScene
	case "hybrid":
		return ModeHybrid
	default:
		return ModeInterval
	}
}

// filter is the ffmpeg -vf graph for the strategy.
func (k KeyframeStrategy) filter() string {
	switch k.Mode {
	case ModeScene:
		return fmt.Sprintf("select='gt(scene,%s)',showinfo", num(k.Threshold))
	case ModeHybrid:
		return fmt.Sprintf("select='gt(scene,%s)*(isnan(prev_selected_t)+gte(t-prev_selected_t,%s))',showinfo",
			num(k.Threshold), num(k.MinInterval))
	default:
		return fmt.Sprintf("fps=1/%s,showinfo", num(k.Interval))
	}
}

func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

var rePtsTime = regexp.MustCompile(`pts_time:\s*(-?[0-9]+(?:\.[0-9]+)?)`)

// parseShowinfo returns the pts_time of every frame the showinfo filter logged.
func parseShowinfo(stderr string) []float64 {
	var out []float64
	for _, line := range strings.Split(stderr, "\n") {
		if m := rePtsTime.FindStringSubmatch(line); m != nil {
			if f, err := strconv.ParseFloat(m[1], 64); err == nil {
				out = append(out, f)
			}
		}
	}
	return out
}

type frame struct {
	Path      string
	Timestamp float64
}

// extractKeyframes writes the selected frames as JPEGs and pairs them with
// their showinfo timestamps.
func (a *Adapter) extractKeyframes(ctx context.Context, scratch *runner.Scratch, input string, ks KeyframeStrategy) ([]frame, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*a.cfg.CmdTimeout)
	defer cancel()

	pattern := scratch.Path("frame_%04d.jpg")
	_, stderr, err := a.runner.Run(ctx, a.cfg.Ffmpeg,
		"-hide_banner", "-y",
		"-i", input,
		"-vf", ks.filter(),
		"-vsync", "vfr",
		"-frames:v", strconv.Itoa(ks.MaxFrames),
		"-q:v", "2",
		pattern,
	)
	if err != nil {
		return nil, err
	}

	paths, err := filepath.Glob(scratch.Path("frame_*.jpg"))
	if err != nil {
		return nil, common.Internal("list frames", err)
	}
	sort.Strings(paths)
	stamps := parseShowinfo(string(stderr))

	frames := make([]frame, len(paths))
	for i, p := range paths {
		ts := float64(i)
		switch {
		case i < len(stamps):
			ts = stamps[i]
		case ks.Mode == ModeInterval:
			ts = float64(i) * ks.Interval
		}
		frames[i] = frame{Path: p, Timestamp: ts}
	}
	return frames, nil
}
