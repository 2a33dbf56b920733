package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/joseph-ayodele/content-extractor/internal/common"
)

// OpenAIConfig configures any OpenAI-compatible server.
type OpenAIConfig struct {
	APIKey      string // if empty, falls back to env OPENAI_API_KEY
	BaseURL     string // default https://api.openai.com/v1
	Model       string
	Temperature float32
	Timeout     time.Duration
	// HealthURL, when set, is probed with GET instead of listing models.
	HealthURL string
}

// OpenAI implements all three capabilities through openai-go.
type OpenAI struct {
	cfg    OpenAIConfig
	client openai.Client
	http   *http.Client
	logger *slog.Logger
}

var (
	_ VisionBackend        = (*OpenAI)(nil)
	_ GenerationBackend    = (*OpenAI)(nil)
	_ TranscriptionBackend = (*OpenAI)(nil)
)

func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) *OpenAI {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	hc := &http.Client{Timeout: cfg.Timeout}
	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(hc),
		option.WithMaxRetries(1),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	return &OpenAI{cfg: cfg, client: openai.NewClient(opts...), http: hc, logger: logger}
}

// NewWhisper returns a transcription client for a self-hosted
// Whisper-compatible server, health-checked through its /health endpoint.
func NewWhisper(cfg OpenAIConfig, logger *slog.Logger) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.HealthURL == "" && cfg.BaseURL != "" {
		base := strings.TrimSuffix(strings.TrimRight(cfg.BaseURL, "/"), "/v1")
		cfg.HealthURL = base + "/health"
	}
	return NewOpenAI(cfg, logger)
}

func (c *OpenAI) ModelName() string { return c.cfg.Model }

func (c *OpenAI) DescribeImage(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
	}
	return c.complete(ctx, params, "vision")
}

func (c *OpenAI) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.cfg.Model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(float64(c.cfg.Temperature)),
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}
	return c.complete(ctx, params, "generate")
}

func (c *OpenAI) complete(ctx context.Context, params openai.ChatCompletionNewParams, op string) (string, error) {
	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		c.logger.Error("openai."+op+".failed", "model", c.cfg.Model, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", classifyOpenAI(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", common.ModelError("openai: response has no choices", nil)
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.logger.Debug("openai."+op+".ok",
		"model", c.cfg.Model,
		"chars", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// verboseTranscription is the verbose_json shape shared by OpenAI and
// self-hosted Whisper servers.
type verboseTranscription struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start        float64 `json:"start"`
		End          float64 `json:"end"`
		Text         string  `json:"text"`
		AvgLogprob   float64 `json:"avg_logprob"`
		NoSpeechProb float64 `json:"no_speech_prob"`
	} `json:"segments"`
}

func (c *OpenAI) Transcribe(ctx context.Context, audio []byte, opts TranscribeOptions) (*Transcript, error) {
	start := time.Now()
	name := opts.Filename
	if name == "" {
		name = "audio.wav"
	}
	mimeType := opts.MIME
	if mimeType == "" {
		mimeType = "audio/wav"
	}
	params := openai.AudioTranscriptionNewParams{
		File:           openai.File(bytes.NewReader(audio), name, mimeType),
		Model:          openai.AudioModel(c.cfg.Model),
		ResponseFormat: openai.AudioResponseFormatVerboseJSON,
	}
	if opts.Language != "" {
		params.Language = openai.String(opts.Language)
	}
	if opts.Prompt != "" {
		params.Prompt = openai.String(opts.Prompt)
	}
	resp, err := c.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		c.logger.Error("openai.transcribe.failed", "model", c.cfg.Model, "bytes", len(audio), "error", err)
		return nil, classifyOpenAI(ctx, err)
	}
	t, err := parseVerbose(resp.RawJSON())
	if err != nil {
		return nil, err
	}
	c.logger.Debug("openai.transcribe.ok",
		"model", c.cfg.Model,
		"segments", len(t.Segments),
		"duration_secs", t.Duration,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return t, nil
}

func parseVerbose(raw string) (*Transcript, error) {
	var v verboseTranscription
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, common.ModelError("decode transcription", err)
	}
	t := &Transcript{Text: strings.TrimSpace(v.Text), Language: v.Language, Duration: v.Duration}
	for _, s := range v.Segments {
		txt := strings.TrimSpace(s.Text)
		if txt == "" {
			continue
		}
		t.Segments = append(t.Segments, Segment{
			Start:      s.Start,
			End:        s.End,
			Text:       txt,
			Confidence: segmentConfidence(s.AvgLogprob, s.NoSpeechProb),
		})
	}
	// plain json responses carry no segments; keep the text as one span
	if len(t.Segments) == 0 && t.Text != "" {
		t.Segments = []Segment{{Start: 0, End: v.Duration, Text: t.Text, Confidence: 1}}
	}
	return t, nil
}

func segmentConfidence(avgLogprob, noSpeech float64) float64 {
	c := math.Exp(avgLogprob) * (1 - noSpeech)
	return math.Max(0, math.Min(1, c))
}

// HealthCheck probes HealthURL when configured, otherwise lists models.
func (c *OpenAI) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if c.cfg.HealthURL != "" {
		_, _, err := GetJSON(ctx, c.http, c.cfg.HealthURL, nil, c.logger)
		return err == nil
	}
	_, err := c.client.Models.List(ctx)
	if err != nil {
		c.logger.Warn("openai.health.failed", "base_url", c.cfg.BaseURL, "error", err)
		return false
	}
	return true
}

func classifyOpenAI(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return common.Timeout("openai request", err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		msg := fmt.Sprintf("openai: HTTP %d", apierr.StatusCode)
		if apierr.StatusCode == http.StatusServiceUnavailable || apierr.StatusCode == http.StatusBadGateway {
			return common.ModelUnavailable(msg, err)
		}
		return common.ModelError(msg, err)
	}
	return common.ModelUnavailable("openai: backend unreachable", err)
}
