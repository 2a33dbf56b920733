package backend

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/content-extractor/internal/common"
)

// FromConfig builds the backend set once at startup. Provider "none" (or an
// empty provider) leaves the capability nil.
func FromConfig(cfg *common.Config, logger *slog.Logger) (Set, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var set Set

	switch p := strings.ToLower(cfg.Vision.Provider); p {
	case "", "none":
	case "ollama":
		set.Vision = NewOllama(OllamaConfig{BaseURL: cfg.Vision.BaseURL, Model: cfg.Vision.Model, Timeout: cfg.Vision.Timeout}, logger)
	case "openai":
		set.Vision = NewOpenAI(OpenAIConfig{APIKey: cfg.Vision.APIKey, BaseURL: cfg.Vision.BaseURL, Model: cfg.Vision.Model, Timeout: cfg.Vision.Timeout}, logger)
	default:
		return Set{}, fmt.Errorf("unknown vision provider %q", p)
	}

	switch p := strings.ToLower(cfg.Transcription.Provider); p {
	case "", "none":
	case "whisper":
		set.Transcription = NewWhisper(OpenAIConfig{APIKey: cfg.Transcription.APIKey, BaseURL: cfg.Transcription.BaseURL, Model: cfg.Transcription.Model, Timeout: cfg.Transcription.Timeout}, logger)
	case "openai":
		set.Transcription = NewOpenAI(OpenAIConfig{APIKey: cfg.Transcription.APIKey, BaseURL: cfg.Transcription.BaseURL, Model: cfg.Transcription.Model, Timeout: cfg.Transcription.Timeout}, logger)
	default:
		return Set{}, fmt.Errorf("unknown transcription provider %q", p)
	}

	switch p := strings.ToLower(cfg.Generation.Provider); p {
	case "", "none":
	case "ollama":
		set.Generation = NewOllama(OllamaConfig{BaseURL: cfg.Generation.BaseURL, Model: cfg.Generation.Model, Temperature: cfg.Generation.Temperature, Timeout: cfg.Generation.Timeout}, logger)
	case "openai":
		set.Generation = NewOpenAI(OpenAIConfig{APIKey: cfg.Generation.APIKey, BaseURL: cfg.Generation.BaseURL, Model: cfg.Generation.Model, Temperature: cfg.Generation.Temperature, Timeout: cfg.Generation.Timeout}, logger)
	default:
		return Set{}, fmt.Errorf("unknown generation provider %q", p)
	}

	logger.Info("backend.config",
		"vision", describe(set.Vision),
		"transcription", describe(set.Transcription),
		"generation", describe(set.Generation),
	)
	return set, nil
}

func describe(b interface{ ModelName() string }) string {
	if b == nil {
		return "none"
	}
	return b.ModelName()
}
