package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/content-extractor/internal/common"
)

// OllamaConfig configures a local Ollama server.
type OllamaConfig struct {
	BaseURL     string // default http://localhost:11434
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// Ollama implements VisionBackend and GenerationBackend over /api/generate.
type Ollama struct {
	cfg    OllamaConfig
	http   *http.Client
	logger *slog.Logger
}

var (
	_ VisionBackend     = (*Ollama)(nil)
	_ GenerationBackend = (*Ollama)(nil)
)

func NewOllama(cfg OllamaConfig, logger *slog.Logger) *Ollama {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ollama{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

func (o *Ollama) ModelName() string { return o.cfg.Model }

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Images  []string       `json:"images,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

func (o *Ollama) DescribeImage(ctx context.Context, image []byte, _ string, prompt string) (string, error) {
	return o.generate(ctx, ollamaRequest{
		Model:  o.cfg.Model,
		Prompt: prompt,
		Images: []string{base64.StdEncoding.EncodeToString(image)},
	})
}

func (o *Ollama) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	opts := map[string]any{"temperature": o.cfg.Temperature}
	if maxTokens > 0 {
		opts["num_predict"] = maxTokens
	}
	return o.generate(ctx, ollamaRequest{Model: o.cfg.Model, Prompt: prompt, Options: opts})
}

func (o *Ollama) generate(ctx context.Context, req ollamaRequest) (string, error) {
	start := time.Now()
	raw, _, err := SendJSON(ctx, o.http, o.cfg.BaseURL+"/api/generate", req, nil, o.logger)
	if err != nil {
		return "", err
	}
	var out struct {
		Response string `json:"response"`
		Error    string `json:"error"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", common.ModelError("decode ollama response", err)
	}
	if out.Error != "" {
		return "", common.ModelError("ollama: "+out.Error, nil)
	}
	o.logger.Debug("ollama.generate.ok",
		"model", req.Model,
		"images", len(req.Images),
		"chars", len(out.Response),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return strings.TrimSpace(out.Response), nil
}

// HealthCheck reports whether the server answers and has the model pulled.
func (o *Ollama) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	raw, _, err := GetJSON(ctx, o.http, o.cfg.BaseURL+"/api/tags", nil, o.logger)
	if err != nil {
		return false
	}
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if json.Unmarshal(raw, &tags) != nil {
		return false
	}
	for _, m := range tags.Models {
		if m.Name == o.cfg.Model || strings.HasPrefix(m.Name, o.cfg.Model+":") {
			return true
		}
	}
	o.logger.Warn("ollama.health.model_missing", "model", o.cfg.Model)
	return false
}
