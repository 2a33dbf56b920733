package audio

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/runner"
)

// Stream is one ffprobe stream entry.
type Stream struct {
	Index        int               `json:"index"`
	CodecType    string            `json:"codec_type"`
	CodecName    string            `json:"codec_name"`
	SampleRate   string            `json:"sample_rate"`
	Channels     int               `json:"channels"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	Duration     string            `json:"duration"`
	Tags         map[string]string `json:"tags"`
}

type probeFormat struct {
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	BitRate    string            `json:"bit_rate"`
	Tags       map[string]string `json:"tags"`
}

type probeOutput struct {
	Streams []Stream    `json:"streams"`
	Format  probeFormat `json:"format"`
}

// MediaInfo is the container description reported by ffprobe.
type MediaInfo struct {
	Duration   float64
	FormatName string
	BitRate    int64
	Tags       map[string]string
	Streams    []Stream
}

// ParseProbe decodes `ffprobe -print_format json -show_format -show_streams`.
func ParseProbe(out []byte) (*MediaInfo, error) {
	var po probeOutput
	if err := json.Unmarshal(out, &po); err != nil {
		return nil, common.ToolFailed("ffprobe returned malformed JSON", err, false)
	}
	info := &MediaInfo{
		FormatName: po.Format.FormatName,
		Tags:       po.Format.Tags,
		Streams:    po.Streams,
	}
	info.Duration, _ = strconv.ParseFloat(po.Format.Duration, 64)
	if info.Duration == 0 {
		for _, s := range po.Streams {
			if d, err := strconv.ParseFloat(s.Duration, 64); err == nil && d > info.Duration {
				info.Duration = d
			}
		}
	}
	info.BitRate, _ = strconv.ParseInt(po.Format.BitRate, 10, 64)
	return info, nil
}

// ProbeMedia runs ffprobe on path.
func ProbeMedia(ctx context.Context, r runner.Runner, ffprobe, path string, timeout time.Duration) (*MediaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, _, err := r.Run(ctx, ffprobe, "-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", path)
	if err != nil {
		return nil, err
	}
	return ParseProbe(out)
}

// First returns the first stream of the given codec type ("audio", "video").
func (m *MediaInfo) First(codecType string) *Stream {
	if m == nil {
		return nil
	}
	for i := range m.Streams {
		if m.Streams[i].CodecType == codecType {
			return &m.Streams[i]
		}
	}
	return nil
}

func (m *MediaInfo) HasAudio() bool { return m.First("audio") != nil }
func (m *MediaInfo) HasVideo() bool { return m.First("video") != nil }

// Metadata flattens the container and first audio stream into result
// metadata keys.
func (m *MediaInfo) Metadata() map[string]any {
	out := map[string]any{
		"duration_secs": m.Duration,
		"container":     m.FormatName,
	}
	if m.BitRate > 0 {
		out["bit_rate"] = m.BitRate
	}
	if len(m.Tags) > 0 {
		out["tags"] = m.Tags
	}
	if a := m.First("audio"); a != nil {
		out["codec"] = a.CodecName
		if sr, err := strconv.Atoi(a.SampleRate); err == nil {
			out["sample_rate"] = sr
		}
		if a.Channels > 0 {
			out["channels"] = a.Channels
		}
	}
	return out
}
