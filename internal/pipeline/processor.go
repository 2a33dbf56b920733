// Package pipeline runs one extraction job end to end: detection, cache
// lookup, dispatch through the registry, automatic OCR escalation,
// summarization and handoff to the downstream sink.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/cache"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/detect"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
	"github.com/joseph-ayodele/content-extractor/internal/progress"
	"github.com/joseph-ayodele/content-extractor/internal/summarize"
)

// Dispatcher runs a strategy with its fallback policy. *registry.Registry
// satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, s constants.Strategy, in extract.Input) (*extract.Result, error)
	Healthy(ctx context.Context, s constants.Strategy) bool
}

type Summarizer interface {
	MaybeSummarize(ctx context.Context, text string) (summarize.Result, error)
}

// Sink is the downstream chunking/embedding collaborator.
type Sink interface {
	Deliver(ctx context.Context, out Outcome) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, out Outcome) error

func (f SinkFunc) Deliver(ctx context.Context, out Outcome) error { return f(ctx, out) }

// Job is one extraction request.
type Job struct {
	ID       string
	Data     []byte
	Filename string
	MIME     string
	// Strategy overrides detection when it names a valid strategy or alias.
	Strategy    string
	Options     extract.Options
	SubmittedAt time.Time
}

// Outcome is what the processor hands downstream. OriginalText is the full
// extracted text whenever Result.ExtractedText was summarized.
type Outcome struct {
	JobID        string
	Filename     string
	Strategy     constants.Strategy
	Status       constants.JobStatus
	Result       *extract.Result
	OriginalText string
	Cached       bool
	Escalated    bool
	Levels       int
	Elapsed      time.Duration
	ErrorKind    common.Kind
	Err          error
}

// Summary is the compact job result reported by the CLI, MCP tools and the
// batch report.
func (o Outcome) Summary() map[string]any {
	out := map[string]any{
		"job_id":   o.JobID,
		"filename": o.Filename,
		"strategy": string(o.Strategy),
		"status":   string(o.Status),
	}
	if o.Err != nil {
		out["error"] = o.Err.Error()
		out["error_kind"] = string(o.ErrorKind)
		return out
	}
	if o.Result != nil {
		out["has_text"] = o.Result.ExtractedText != ""
		out["text_length"] = len(o.Result.ExtractedText)
		out["has_description"] = o.Result.AIDescription != ""
		out["was_summarized"] = o.Result.WasSummarized
		out["metadata"] = o.Result.Metadata
	}
	out["cached"] = o.Cached
	return out
}

type Config struct {
	AutoOCR  bool
	MaxBytes int64
}

func ConfigFrom(cfg *common.Config) Config {
	return Config{AutoOCR: cfg.Policy.AutoOCR}
}

type Processor struct {
	cfg        Config
	dispatcher Dispatcher
	summarizer Summarizer
	cache      *cache.Cache
	store      progress.Store
	sink       Sink
	logger     *slog.Logger
}

type Option func(*Processor)

func WithCache(c *cache.Cache) Option { return func(p *Processor) { p.cache = c } }

func WithStore(s progress.Store) Option { return func(p *Processor) { p.store = s } }

func WithSink(s Sink) Option { return func(p *Processor) { p.sink = s } }

func WithSummarizer(s Summarizer) Option { return func(p *Processor) { p.summarizer = s } }

func NewProcessor(cfg Config, d Dispatcher, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{cfg: cfg, dispatcher: d, logger: logger}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process runs job to completion. The returned Outcome is populated on
// failure too (Status FAILED with the error kind); the error is the same
// failure.
func (p *Processor) Process(ctx context.Context, job Job) (Outcome, error) {
	start := time.Now()
	if job.ID == "" {
		job.ID = uuid.NewString()
	} else if err := common.NewValidator().Field("id", job.ID, common.UUID).Err(); err != nil {
		return Outcome{Filename: job.Filename, Status: constants.JobStatusFailed, ErrorKind: common.KindInvalidInput, Err: err}, err
	}
	logger := p.logger.With("job_id", job.ID, "filename", job.Filename)
	ctx = common.WithJobID(ctx, job.ID)
	ctx = common.WithLogger(ctx, logger)
	tracker := progress.NewTracker(p.store, job.ID, logger)
	ctx = progress.WithReporter(ctx, tracker.Reporter(ctx))

	out := Outcome{JobID: job.ID, Filename: job.Filename, Status: constants.JobStatusRunning}
	fail := func(err error) (Outcome, error) {
		out.Status = constants.JobStatusFailed
		out.ErrorKind = common.KindOf(err)
		out.Err = err
		out.Elapsed = time.Since(start)
		tracker.Mark(ctx, constants.JobStatusFailed, 100, string(out.ErrorKind)+": "+err.Error())
		logger.Error("pipeline.job.failed",
			"strategy", out.Strategy,
			"kind", out.ErrorKind,
			"error", err,
			"elapsed_ms", out.Elapsed.Milliseconds(),
		)
		return out, err
	}

	tracker.Mark(ctx, constants.JobStatusRunning, constants.ProgressStarted, constants.MsgStarted)
	if err := p.validate(job); err != nil {
		return fail(err)
	}
	out.Strategy = detect.Detect(job.Strategy, job.MIME, job.Filename)
	logger.Info("pipeline.job.start", "strategy", out.Strategy, "size_bytes", len(job.Data))

	tracker.Mark(ctx, constants.JobStatusRunning, constants.ProgressExtracting, constants.MsgExtracting)
	in := extract.Input{Data: job.Data, Filename: job.Filename, MIME: job.MIME, Options: job.Options}
	res, err := p.extract(ctx, &out, in)
	if err != nil {
		return fail(err)
	}
	tracker.Mark(ctx, constants.JobStatusRunning, constants.ProgressExtracted, constants.MsgExtracted)

	if p.summarizer != nil && job.Options.Bool("summarize", true) {
		tracker.Mark(ctx, constants.JobStatusSummarizing, constants.ProgressSummarize, constants.MsgSummarize)
		p.summarize(ctx, &out, res)
	}
	out.Result = res
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	if p.sink != nil {
		if err := p.sink.Deliver(ctx, out); err != nil {
			return fail(common.WrapError(err, "handoff"))
		}
	}

	out.Status = constants.JobStatusDone
	out.Elapsed = time.Since(start)
	tracker.Mark(ctx, constants.JobStatusDone, constants.ProgressDone, constants.MsgDone)
	logger.Info("pipeline.job.ok",
		"strategy", out.Strategy,
		"text_len", len(res.ExtractedText),
		"cached", out.Cached,
		"was_summarized", res.WasSummarized,
		"elapsed_ms", out.Elapsed.Milliseconds(),
	)
	return out, nil
}

func (p *Processor) validate(job Job) error {
	v := common.NewValidator().Field("data", job.Data, common.Required)
	if p.cfg.MaxBytes > 0 {
		v.Field("data", job.Data, common.MaxBytes(p.cfg.MaxBytes))
	}
	if job.Strategy != "" {
		if _, ok := constants.ParseStrategy(job.Strategy); !ok {
			v.Field("strategy", job.Strategy, func(field string, value any) *common.ValidationError {
				return &common.ValidationError{Field: field, Value: value, Message: "is not a known strategy"}
			})
		}
	}
	if err := v.Err(); err != nil {
		return err
	}
	return extract.ValidateOptions(job.Options)
}

// extract resolves the result from the cache or the dispatcher, escalating
// sparse PDF text to OCR when allowed.
func (p *Processor) extract(ctx context.Context, out *Outcome, in extract.Input) (*extract.Result, error) {
	useCache := p.cache != nil && in.Options.Bool("cache", true)
	key := cache.Key(in.Data, out.Strategy, in.Options)
	if useCache {
		if res, ok := p.cache.Get(ctx, key); ok {
			out.Cached = true
			return res, nil
		}
	}

	res, err := p.dispatcher.Dispatch(ctx, out.Strategy, in)
	if err != nil {
		return nil, err
	}
	if p.shouldEscalate(ctx, out.Strategy, in, res) {
		res = p.escalate(ctx, out, in, res)
	}
	switch {
	case !useCache:
	case cache.Degraded(res):
		common.LoggerFromContext(ctx, p.logger).Debug("pipeline.cache.skip", "reason", "degraded")
	default:
		p.cache.Put(ctx, key, res)
	}
	return res, nil
}

func (p *Processor) shouldEscalate(ctx context.Context, s constants.Strategy, in extract.Input, res *extract.Result) bool {
	return s == constants.PdfText &&
		res.MetaBool("needs_ocr") &&
		p.cfg.AutoOCR &&
		in.Options.Bool("auto_ocr", true) &&
		p.dispatcher.Healthy(ctx, constants.PdfOcr)
}

// escalate reruns a sparse PDF through OCR. An OCR failure keeps the text
// layer result with a warning.
func (p *Processor) escalate(ctx context.Context, out *Outcome, in extract.Input, textRes *extract.Result) *extract.Result {
	logger := common.LoggerFromContext(ctx, p.logger)
	logger.Info("pipeline.ocr.escalate")
	res, err := p.dispatcher.Dispatch(ctx, constants.PdfOcr, in)
	if err != nil {
		logger.Warn("pipeline.ocr.escalate.failed", "kind", common.KindOf(err), "error", err)
		textRes.Warn("automatic OCR failed: " + err.Error())
		textRes.Set("ocr_escalation_failed", true)
		return textRes
	}
	if _, fellBack := res.Metadata["fallback_from"]; fellBack {
		// the OCR chain degraded back to the text layer; keep the original
		textRes.Warn("automatic OCR unavailable")
		textRes.Set("ocr_escalation_failed", true)
		return textRes
	}
	out.Strategy = constants.PdfOcr
	out.Escalated = true
	res.Set("escalated_from", string(constants.PdfText))
	return res
}

// summarize compresses res in place. Summarizer failures never fail the
// job: the full text is handed off with summarization_skipped.
func (p *Processor) summarize(ctx context.Context, out *Outcome, res *extract.Result) {
	logger := common.LoggerFromContext(ctx, p.logger)
	sr, err := p.summarizer.MaybeSummarize(ctx, res.ExtractedText)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			return
		}
		logger.Warn("pipeline.summarize.skipped", "kind", common.KindOf(err), "error", err)
		res.Set("summarization_skipped", true).Set("summarization_error", err.Error())
		return
	}
	if !sr.WasSummarized {
		return
	}
	out.OriginalText = res.ExtractedText
	out.Levels = sr.Levels
	tokens := sr.OriginalTokens
	res.ExtractedText = sr.Text
	res.WasSummarized = true
	res.OriginalTokenCount = &tokens
	res.Set("summary_levels", sr.Levels).Set("summary_tokens", sr.SummaryTokens)
	if sr.Truncated {
		res.Set("summary_truncated", true)
	}
}
