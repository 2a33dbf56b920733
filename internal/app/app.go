// Package app assembles the extraction stack from configuration. Both the
// extractd daemon and the extract CLI build through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/content-extractor/internal/audio"
	"github.com/joseph-ayodele/content-extractor/internal/backend"
	"github.com/joseph-ayodele/content-extractor/internal/cache"
	"github.com/joseph-ayodele/content-extractor/internal/code"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
	"github.com/joseph-ayodele/content-extractor/internal/ocr"
	"github.com/joseph-ayodele/content-extractor/internal/office"
	"github.com/joseph-ayodele/content-extractor/internal/pipeline"
	"github.com/joseph-ayodele/content-extractor/internal/progress"
	"github.com/joseph-ayodele/content-extractor/internal/registry"
	"github.com/joseph-ayodele/content-extractor/internal/runner"
	"github.com/joseph-ayodele/content-extractor/internal/structured"
	"github.com/joseph-ayodele/content-extractor/internal/summarize"
	"github.com/joseph-ayodele/content-extractor/internal/text"
	"github.com/joseph-ayodele/content-extractor/internal/video"
	"github.com/joseph-ayodele/content-extractor/internal/vision"
)

// NewLogger builds the process logger. The text format drops time and level
// so lines read as "msg key=value ...".
func NewLogger(cfg common.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// Adapters builds one adapter per strategy. A nil backend in set leaves the
// dependent adapters reporting unhealthy.
func Adapters(cfg *common.Config, set backend.Set, r runner.Runner, logger *slog.Logger) []extract.Adapter {
	ocrCfg := ocr.ConfigFrom(cfg)
	audioCfg := audio.ConfigFrom(cfg)
	tess := ocr.NewTesseract(ocrCfg, r, logger)
	transcriber := audio.NewTranscriber(audioCfg, set.Transcription, r, logger)

	return []extract.Adapter{
		text.New(cfg.Text.MaxBytes, logger),
		ocr.NewPdfText(ocrCfg, r, logger),
		ocr.NewPdfOcr(ocrCfg, r, logger),
		vision.New(vision.ConfigFrom(cfg), set.Vision, r, tess, logger),
		audio.New(audioCfg, set.Transcription, r, logger),
		video.New(video.ConfigFrom(cfg), set.Vision, transcriber, r, logger),
		code.New(cfg.Text.MaxBytes, logger),
		office.New(office.ConfigFrom(cfg), r, logger),
		structured.New(logger),
	}
}

// App is the assembled stack.
type App struct {
	Config    *common.Config
	Backends  backend.Set
	Registry  *registry.Registry
	Processor *pipeline.Processor
	Store     progress.Store
	Cache     *cache.Cache

	logger *slog.Logger
}

type options struct {
	store   progress.Store
	sink    pipeline.Sink
	runner  runner.Runner
	backend *backend.Set
	noCache bool
}

type Option func(*options)

// WithStore replaces the configured progress store.
func WithStore(s progress.Store) Option { return func(o *options) { o.store = s } }

func WithSink(s pipeline.Sink) Option { return func(o *options) { o.sink = s } }

// WithRunner replaces the process runner (tests).
func WithRunner(r runner.Runner) Option { return func(o *options) { o.runner = r } }

// WithBackends replaces the configured AI backends.
func WithBackends(set backend.Set) Option { return func(o *options) { o.backend = &set } }

func WithoutCache() Option { return func(o *options) { o.noCache = true } }

// Build wires backends, adapters, registry, progress store, cache and
// processor. An unreachable Redis disables caching instead of failing.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	a := &App{Config: cfg, logger: logger}

	if o.backend != nil {
		a.Backends = *o.backend
	} else {
		set, err := backend.FromConfig(cfg, logger)
		if err != nil {
			return nil, common.WrapError(err, "backends")
		}
		a.Backends = set
	}

	r := o.runner
	if r == nil {
		r = runner.NewExec(logger)
	}
	reg, err := registry.New(Adapters(cfg, a.Backends, r, logger), registry.PolicyFrom(cfg), logger)
	if err != nil {
		return nil, err
	}
	a.Registry = reg

	a.Store = o.store
	if a.Store == nil {
		st, err := progress.Open(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("open progress store: %w", err)
		}
		a.Store = st
	}

	if !o.noCache {
		c, err := cache.New(ctx, cfg.Cache, logger)
		if err != nil {
			logger.Warn("cache disabled", "addr", cfg.Cache.RedisAddr, "error", err)
		} else {
			a.Cache = c
		}
	}

	popts := []pipeline.Option{pipeline.WithStore(a.Store), pipeline.WithCache(a.Cache)}
	if cfg.Summarizer.Enabled {
		popts = append(popts, pipeline.WithSummarizer(summarize.New(summarize.ConfigFrom(cfg), a.Backends.Generation, logger)))
	}
	if o.sink != nil {
		popts = append(popts, pipeline.WithSink(o.sink))
	}
	a.Processor = pipeline.NewProcessor(pipeline.ConfigFrom(cfg), a.Registry, logger, popts...)

	logger.Info("app.ready",
		"vision", a.Backends.Vision != nil,
		"transcription", a.Backends.Transcription != nil,
		"generation", a.Backends.Generation != nil,
		"cache", a.Cache != nil,
		"summarizer", cfg.Summarizer.Enabled,
	)
	return a, nil
}

// Close releases the progress store and cache.
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	errs = append(errs, a.Cache.Close())
	err := errors.Join(errs...)
	if err != nil {
		a.logger.Warn("app.close", "error", err)
	}
	return err
}
