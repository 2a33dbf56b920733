package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/content-extractor/constants"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "dependency", err: DependencyMissing("pdftotext not found", nil), want: KindDependencyMissing},
		{name: "wrapped timeout", err: fmt.Errorf("dispatch: %w", Timeout("budget exceeded", nil)), want: KindTimeout},
		{name: "deadline", err: context.DeadlineExceeded, want: KindTimeout},
		{name: "tool failed", err: ToolFailed("exit 1", errors.New("boom"), false), want: KindToolFailed},
		{name: "invalid", err: InvalidInputf("bad %s", "pdf"), want: KindInvalidInput},
		{name: "validation sentinel", err: ErrValidation, want: KindInvalidInput},
		{name: "model unavailable", err: ModelUnavailable("down", nil), want: KindModelUnavailable},
		{name: "model error", err: ModelError("500", nil), want: KindModelError},
		{name: "canceled", err: context.Canceled, want: KindCanceled},
		{name: "unknown", err: errors.New("?"), want: KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Timeout("slow", nil)))
	assert.True(t, IsRetryable(ModelUnavailable("down", nil)))
	assert.True(t, IsRetryable(ModelError("bad gateway", nil)))
	assert.True(t, IsRetryable(ToolFailed("killed", nil, true)))
	assert.False(t, IsRetryable(ToolFailed("malformed", nil, false)))
	assert.False(t, IsRetryable(DependencyMissing("ffmpeg", nil)))
	assert.False(t, IsRetryable(InvalidInputf("corrupt")))
	assert.False(t, IsRetryable(Internalf("bug")))
}

func TestAppErrorKeepsCause(t *testing.T) {
	cause := errors.New("exit status 2")
	err := ToolFailed("pandoc failed", cause, false)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrToolFailed)
	assert.Equal(t, "TOOL_FAILED: pandoc failed: tool failed: exit status 2", err.Error())
	assert.Nil(t, WrapError(nil, "x"))
}

func TestValidator(t *testing.T) {
	v := NewValidator().
		Field("data", []byte{}, Required).
		Field("data", []byte("12345"), MaxBytes(4)).
		Field("format", "xml", OneOf("text", "json")).
		Field("id", "not-a-uuid", UUID)
	require.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 4)

	err := v.Err()
	assert.Equal(t, KindInvalidInput, KindOf(err))
	assert.Contains(t, err.Error(), "must be at most 4 bytes")

	ok := NewValidator().
		Field("name", "a.txt", Required).
		Field("format", "", OneOf("text")).
		Field("id", "6f1c1f0e-8f55-4d8a-9a51-0c7a6d2f2a10", UUID)
	assert.NoError(t, ok.Err())
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, constants.CmdTimeout, cfg.Tools.CmdTimeout)
	assert.Equal(t, constants.OCRDPI, cfg.OCR.DPI)
	assert.True(t, cfg.Policy.AutoOCR)
	assert.Empty(t, cfg.Policy.StrategyTimeouts)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("EXTRACTION_CMD_TIMEOUT", "45")
	t.Setenv("TIMEOUT_PDF_OCR", "15m")
	t.Setenv("AUTO_OCR", "false")
	t.Setenv("WORKERS", "8")
	t.Setenv("VISION_PROVIDER", "OpenAI")

	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 45*time.Second, cfg.Tools.CmdTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Policy.StrategyTimeouts[constants.PdfOcr])
	assert.False(t, cfg.Policy.AutoOCR)
	assert.Equal(t, 8, cfg.Worker.Workers)
	assert.Equal(t, "openai", cfg.Vision.Provider)
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "dpi", env: map[string]string{"OCR_DPI": "20"}, want: "OCR_DPI"},
		{name: "provider", env: map[string]string{"VISION_PROVIDER": "gemini"}, want: "gemini"},
		{name: "log format", env: map[string]string{"LOG_FORMAT": "xml"}, want: "LOG_FORMAT"},
		{name: "overlap", env: map[string]string{"AUDIO_CHUNK_OVERLAP": "400s", "AUDIO_CHUNK_LENGTH": "300s"}, want: "AUDIO_CHUNK_OVERLAP"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			err := LoadConfig().Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestContextValues(t *testing.T) {
	ctx := WithJobID(context.Background(), "job-1")
	ctx = WithRequestID(ctx, "req-1")
	assert.Equal(t, "job-1", JobIDFromContext(ctx))
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))

	fallback := slog.Default()
	assert.Same(t, fallback, LoggerFromContext(context.Background(), fallback))
	l := slog.New(slog.DiscardHandler)
	assert.Same(t, l, LoggerFromContext(WithLogger(ctx, l), fallback))
}
