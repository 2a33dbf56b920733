// Package summarize compresses long extracted text for downstream
// consumers. The original text is never modified; callers keep it.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/backend"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
)

type Config struct {
	Enabled        bool
	TokenThreshold int
	MapReduceBound int
	TargetTokens   int
	WindowTokens   int
	OverlapTokens  int
	ChunkTokens    int
	Concurrency    int
	MaxLevels      int
}

func ConfigFrom(cfg *common.Config) Config {
	s := cfg.Summarizer
	return Config{
		Enabled:        s.Enabled,
		TokenThreshold: s.TokenThreshold,
		MapReduceBound: s.MapReduceBound,
		TargetTokens:   s.TargetTokens,
		WindowTokens:   s.WindowTokens,
		OverlapTokens:  s.OverlapTokens,
		ChunkTokens:    s.ChunkTokens,
		Concurrency:    s.Concurrency,
		MaxLevels:      s.MaxLevels,
	}
}

func (c Config) withDefaults() Config {
	if c.TokenThreshold <= 0 {
		c.TokenThreshold = constants.SummaryTokenThreshold
	}
	if c.MapReduceBound <= 0 {
		c.MapReduceBound = constants.SummaryMapReduceBound
	}
	if c.TargetTokens <= 0 {
		c.TargetTokens = constants.SummaryTargetTokens
	}
	if c.WindowTokens <= 0 {
		c.WindowTokens = constants.SummaryWindowTokens
	}
	if c.OverlapTokens < 0 || c.OverlapTokens >= c.WindowTokens {
		c.OverlapTokens = 0
	}
	if c.ChunkTokens <= 0 {
		c.ChunkTokens = constants.SummaryChunkTokens
	}
	if c.Concurrency <= 0 {
		c.Concurrency = constants.SummaryConcurrency
	}
	if c.MaxLevels <= 0 {
		c.MaxLevels = constants.SummaryMaxLevels
	}
	return c
}

// Result is the outcome of MaybeSummarize. Levels is 0 for passthrough.
type Result struct {
	Text           string
	WasSummarized  bool
	OriginalTokens int
	SummaryTokens  int
	Levels         int
	Truncated      bool
}

type Summarizer struct {
	cfg    Config
	gen    backend.GenerationBackend
	logger *slog.Logger
}

// New returns a summarizer. gen may be nil; text over the threshold then
// fails with ModelUnavailable.
func New(cfg Config, gen backend.GenerationBackend, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{cfg: cfg.withDefaults(), gen: gen, logger: logger}
}

// Threshold is the token count above which text is summarized.
func (s *Summarizer) Threshold() int { return s.cfg.TokenThreshold }

// MaybeSummarize passes text through when it is within the threshold,
// summarizes it in one pass up to the map-reduce bound, and repeatedly
// reduces it beyond that until it fits the target size.
func (s *Summarizer) MaybeSummarize(ctx context.Context, text string) (Result, error) {
	tokens := extract.EstimateTokens(text)
	res := Result{Text: text, OriginalTokens: tokens, SummaryTokens: tokens}
	if tokens <= s.cfg.TokenThreshold {
		return res, nil
	}
	if s.gen == nil {
		return res, common.ModelUnavailable("no generation backend configured for summarization", nil)
	}

	start := time.Now()
	mode := "map_reduce"
	if tokens <= s.cfg.MapReduceBound {
		mode = "single_pass"
	}
	s.logger.Info("summarize.start", "tokens", tokens, "mode", mode)

	var (
		out    string
		levels int
		trunc  bool
		err    error
	)
	if tokens <= s.cfg.MapReduceBound {
		out, err = s.singlePass(ctx, text)
		levels = 1
	} else {
		out, levels, err = s.mapReduce(ctx, text)
	}
	if err != nil {
		s.logger.Error("summarize.failed", "tokens", tokens, "levels", levels, "error", err)
		return res, err
	}
	if extract.EstimateTokens(out) > s.cfg.TargetTokens {
		out = truncateTokens(out, s.cfg.TargetTokens)
		trunc = true
	}

	res.Text = out
	res.WasSummarized = true
	res.SummaryTokens = extract.EstimateTokens(out)
	res.Levels = levels
	res.Truncated = trunc
	s.logger.Info("summarize.ok",
		"original_tokens", tokens,
		"summary_tokens", res.SummaryTokens,
		"levels", levels,
		"truncated", trunc,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (s *Summarizer) singlePass(ctx context.Context, text string) (string, error) {
	summaries, err := s.mapWindows(ctx, text)
	if err != nil {
		return "", err
	}
	combined := strings.Join(summaries, "\n\n")
	if extract.EstimateTokens(combined) <= s.cfg.TargetTokens && len(summaries) == 1 {
		return combined, nil
	}
	return s.generate(ctx, condensePrompt(s.cfg.TargetTokens, combined), s.cfg.TargetTokens)
}

func (s *Summarizer) mapReduce(ctx context.Context, text string) (string, int, error) {
	current := text
	levels := 0
	for extract.EstimateTokens(current) > s.cfg.TargetTokens {
		if levels == s.cfg.MaxLevels {
			s.logger.Warn("summarize.max_levels", "levels", levels, "tokens", extract.EstimateTokens(current))
			break
		}
		summaries, err := s.mapWindows(ctx, current)
		if err != nil {
			return "", levels, err
		}
		next := strings.Join(summaries, "\n\n")
		levels++
		before, after := extract.EstimateTokens(current), extract.EstimateTokens(next)
		s.logger.Debug("summarize.level", "level", levels, "windows", len(summaries), "tokens_in", before, "tokens_out", after)
		if after >= before {
			// a level that does not shrink would never converge
			current = next
			break
		}
		current = next
	}
	return current, levels, nil
}

// mapWindows summarizes every window concurrently, at most Concurrency at
// a time, and returns the summaries in window order.
func (s *Summarizer) mapWindows(ctx context.Context, text string) ([]string, error) {
	windows := splitWindows(text, s.cfg.WindowTokens, s.cfg.OverlapTokens)
	out := make([]string, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, w := range windows {
		g.Go(func() error {
			sum, err := s.generate(gctx, windowPrompt(s.cfg.ChunkTokens, i+1, len(windows), w), s.cfg.ChunkTokens)
			if err != nil {
				return fmt.Errorf("window %d/%d: %w", i+1, len(windows), err)
			}
			out[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Summarizer) generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	out, err := s.gen.Generate(ctx, prompt, maxTokens)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", common.ModelError("generation backend returned an empty summary", nil)
	}
	return out, nil
}

func windowPrompt(maxTokens, n, total int, text string) string {
	return fmt.Sprintf("Summarize part %d of %d of a longer document in at most %d tokens. "+
		"Keep names, numbers, dates and decisions. Reply with the summary only.\n\n%s", n, total, maxTokens, text)
}

func condensePrompt(maxTokens int, text string) string {
	return fmt.Sprintf("The following are summaries of consecutive parts of one document. "+
		"Condense them into a single coherent summary of at most %d tokens. Reply with the summary only.\n\n%s", maxTokens, text)
}
