package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/cache"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
	"github.com/joseph-ayodele/content-extractor/internal/progress"
	"github.com/joseph-ayodele/content-extractor/internal/summarize"
)

type fakeDispatcher struct {
	mu      sync.Mutex
	fns     map[constants.Strategy]func(extract.Input) (*extract.Result, error)
	healthy map[constants.Strategy]bool
	calls   []constants.Strategy
}

func newDispatcher() *fakeDispatcher {
	return &fakeDispatcher{
		fns:     make(map[constants.Strategy]func(extract.Input) (*extract.Result, error)),
		healthy: make(map[constants.Strategy]bool),
	}
}

func (d *fakeDispatcher) Dispatch(_ context.Context, s constants.Strategy, in extract.Input) (*extract.Result, error) {
	d.mu.Lock()
	d.calls = append(d.calls, s)
	fn := d.fns[s]
	d.mu.Unlock()
	if fn == nil {
		return extract.NewResult(string(in.Data)).Set("strategy", string(s)), nil
	}
	return fn(in)
}

func (d *fakeDispatcher) Healthy(_ context.Context, s constants.Strategy) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.healthy[s]
}

func (d *fakeDispatcher) Calls() []constants.Strategy {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]constants.Strategy(nil), d.calls...)
}

type summarizerFunc func(ctx context.Context, text string) (summarize.Result, error)

func (f summarizerFunc) MaybeSummarize(ctx context.Context, text string) (summarize.Result, error) {
	return f(ctx, text)
}

func percents(t *testing.T, store progress.Store, jobID string) []int {
	t.Helper()
	hist, err := store.History(context.Background(), jobID)
	require.NoError(t, err)
	var out []int
	for _, m := range hist {
		out = append(out, m.Percent)
	}
	return out
}

func TestProcessTextFile(t *testing.T) {
	d := newDispatcher()
	store := progress.NewMemory()
	var delivered []Outcome
	p := NewProcessor(Config{}, d, nil,
		WithStore(store),
		WithSink(SinkFunc(func(_ context.Context, out Outcome) error {
			delivered = append(delivered, out)
			return nil
		})),
	)

	out, err := p.Process(context.Background(), Job{Data: []byte("hello world"), Filename: "notes.txt", MIME: "text/plain"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.JobID)
	assert.Equal(t, constants.TextNative, out.Strategy)
	assert.Equal(t, constants.JobStatusDone, out.Status)
	assert.Equal(t, "hello world", out.Result.ExtractedText)
	require.Len(t, delivered, 1)
	assert.Equal(t, out.JobID, delivered[0].JobID)

	assert.Equal(t, []int{10, 20, 80, 100}, percents(t, store, out.JobID))
	latest, err := store.Latest(context.Background(), out.JobID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusDone, latest.Status)
}

func TestProcessStrategyOverride(t *testing.T) {
	d := newDispatcher()
	p := NewProcessor(Config{}, d, nil)

	out, err := p.Process(context.Background(), Job{Data: []byte("%PDF"), Filename: "scan.pdf", Strategy: "pdfocr"})
	require.NoError(t, err)
	assert.Equal(t, constants.PdfOcr, out.Strategy)
	assert.Equal(t, []constants.Strategy{constants.PdfOcr}, d.Calls())
}

func TestProcessValidation(t *testing.T) {
	tests := []struct {
		name string
		job  Job
	}{
		{name: "empty data", job: Job{Filename: "a.txt"}},
		{name: "unknown strategy", job: Job{Data: []byte("x"), Strategy: "teleport"}},
		{name: "bad option type", job: Job{Data: []byte("x"), Options: extract.Options{"dpi": "high"}}},
		{name: "too large", job: Job{Data: []byte("0123456789abc")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDispatcher()
			store := progress.NewMemory()
			p := NewProcessor(Config{MaxBytes: 10}, d, nil, WithStore(store))

			out, err := p.Process(context.Background(), tt.job)
			require.Error(t, err)
			assert.Equal(t, common.KindInvalidInput, common.KindOf(err))
			assert.Equal(t, constants.JobStatusFailed, out.Status)
			assert.Equal(t, common.KindInvalidInput, out.ErrorKind)
			assert.Empty(t, d.Calls())

			latest, err := store.Latest(context.Background(), out.JobID)
			require.NoError(t, err)
			assert.Equal(t, constants.JobStatusFailed, latest.Status)
			assert.Contains(t, latest.Message, "INVALID_INPUT")
		})
	}
}

func TestProcessDispatchFailure(t *testing.T) {
	d := newDispatcher()
	d.fns[constants.AudioTranscribe] = func(extract.Input) (*extract.Result, error) {
		return nil, common.Timeout("whisper too slow", nil)
	}
	delivered := false
	p := NewProcessor(Config{}, d, nil, WithSink(SinkFunc(func(context.Context, Outcome) error {
		delivered = true
		return nil
	})))

	out, err := p.Process(context.Background(), Job{Data: []byte("RIFF"), Filename: "call.wav", MIME: "audio/wav"})
	require.Error(t, err)
	assert.Equal(t, common.KindTimeout, out.ErrorKind)
	assert.False(t, delivered)
	assert.Equal(t, "TIMEOUT", out.Summary()["error_kind"])
}

func sparsePDF(extract.Input) (*extract.Result, error) {
	return extract.NewResult("p1").Set("needs_ocr", true), nil
}

func TestAutoOCREscalation(t *testing.T) {
	d := newDispatcher()
	d.fns[constants.PdfText] = sparsePDF
	d.fns[constants.PdfOcr] = func(extract.Input) (*extract.Result, error) {
		return extract.NewResult("scanned words").Set("ocr_confidence", 0.9), nil
	}
	d.healthy[constants.PdfOcr] = true
	p := NewProcessor(Config{AutoOCR: true}, d, nil)

	out, err := p.Process(context.Background(), Job{Data: []byte("%PDF"), Filename: "scan.pdf", MIME: "application/pdf"})
	require.NoError(t, err)
	assert.True(t, out.Escalated)
	assert.Equal(t, constants.PdfOcr, out.Strategy)
	assert.Equal(t, "scanned words", out.Result.ExtractedText)
	assert.Equal(t, "pdf_text", out.Result.Metadata["escalated_from"])
	assert.Equal(t, []constants.Strategy{constants.PdfText, constants.PdfOcr}, d.Calls())
}

func TestAutoOCRSkipped(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		opts    extract.Options
		healthy bool
	}{
		{name: "disabled by config", cfg: Config{}, healthy: true},
		{name: "disabled by option", cfg: Config{AutoOCR: true}, opts: extract.Options{"auto_ocr": false}, healthy: true},
		{name: "ocr unhealthy", cfg: Config{AutoOCR: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDispatcher()
			d.fns[constants.PdfText] = sparsePDF
			d.healthy[constants.PdfOcr] = tt.healthy
			p := NewProcessor(tt.cfg, d, nil)

			out, err := p.Process(context.Background(), Job{Data: []byte("%PDF"), Filename: "scan.pdf", Options: tt.opts})
			require.NoError(t, err)
			assert.False(t, out.Escalated)
			assert.True(t, out.Result.MetaBool("needs_ocr"))
			assert.Equal(t, []constants.Strategy{constants.PdfText}, d.Calls())
		})
	}
}

func TestAutoOCRFailureKeepsTextLayer(t *testing.T) {
	d := newDispatcher()
	d.fns[constants.PdfText] = sparsePDF
	d.fns[constants.PdfOcr] = func(extract.Input) (*extract.Result, error) {
		return nil, common.ToolFailed("tesseract crashed", nil, false)
	}
	d.healthy[constants.PdfOcr] = true
	p := NewProcessor(Config{AutoOCR: true}, d, nil)

	out, err := p.Process(context.Background(), Job{Data: []byte("%PDF"), Filename: "scan.pdf"})
	require.NoError(t, err)
	assert.Equal(t, constants.PdfText, out.Strategy)
	assert.Equal(t, "p1", out.Result.ExtractedText)
	assert.NotEmpty(t, out.Result.Metadata["warnings"])
}

func TestSummarization(t *testing.T) {
	long := strings.Repeat("word ", 200)
	d := newDispatcher()
	var delivered Outcome
	p := NewProcessor(Config{}, d, nil,
		WithSummarizer(summarizerFunc(func(_ context.Context, text string) (summarize.Result, error) {
			return summarize.Result{Text: "short", WasSummarized: true, OriginalTokens: extract.EstimateTokens(text), SummaryTokens: 2, Levels: 1}, nil
		})),
		WithSink(SinkFunc(func(_ context.Context, out Outcome) error {
			delivered = out
			return nil
		})),
	)

	out, err := p.Process(context.Background(), Job{Data: []byte(long), Filename: "long.txt"})
	require.NoError(t, err)
	assert.True(t, out.Result.WasSummarized)
	require.NotNil(t, out.Result.OriginalTokenCount)
	assert.Equal(t, extract.EstimateTokens(long), *out.Result.OriginalTokenCount)
	assert.Equal(t, "short", out.Result.ExtractedText)
	assert.Equal(t, long, delivered.OriginalText)
	assert.Equal(t, 1, delivered.Levels)
}

func TestSummarizationSkippedWithoutGenerator(t *testing.T) {
	long := strings.Repeat("token ", 100)
	d := newDispatcher()
	sum := summarize.New(summarize.Config{TokenThreshold: 10}, nil, nil)
	store := progress.NewMemory()
	p := NewProcessor(Config{}, d, nil, WithSummarizer(sum), WithStore(store))

	out, err := p.Process(context.Background(), Job{Data: []byte(long), Filename: "long.txt"})
	require.NoError(t, err)
	assert.False(t, out.Result.WasSummarized)
	assert.Nil(t, out.Result.OriginalTokenCount)
	assert.Equal(t, long, out.Result.ExtractedText)
	assert.True(t, out.Result.MetaBool("summarization_skipped"))
	assert.Equal(t, []int{10, 20, 80, 90, 100}, percents(t, store, out.JobID))
}

func TestSummarizeOptionOff(t *testing.T) {
	called := false
	p := NewProcessor(Config{}, newDispatcher(), nil, WithSummarizer(summarizerFunc(func(context.Context, string) (summarize.Result, error) {
		called = true
		return summarize.Result{}, nil
	})))
	_, err := p.Process(context.Background(), Job{Data: []byte("x"), Options: extract.Options{"summarize": false}})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestSinkFailureFailsJob(t *testing.T) {
	p := NewProcessor(Config{}, newDispatcher(), nil, WithSink(SinkFunc(func(context.Context, Outcome) error {
		return errors.New("embedding queue full")
	})))
	out, err := p.Process(context.Background(), Job{Data: []byte("x")})
	require.Error(t, err)
	assert.Equal(t, constants.JobStatusFailed, out.Status)
	assert.Contains(t, err.Error(), "handoff")
}

func TestResultCache(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := cache.New(context.Background(), common.CacheConfig{RedisAddr: mr.Addr()}, nil)
	require.NoError(t, err)
	defer c.Close()

	d := newDispatcher()
	p := NewProcessor(Config{}, d, nil, WithCache(c))
	job := Job{Data: []byte("cached body"), Filename: "a.txt"}

	first, err := p.Process(context.Background(), job)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := p.Process(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "cached body", second.Result.ExtractedText)
	assert.Len(t, d.Calls(), 1)

	job.Options = extract.Options{"cache": false}
	third, err := p.Process(context.Background(), job)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Len(t, d.Calls(), 2)
}

func TestDegradedResultsAreNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := cache.New(context.Background(), common.CacheConfig{RedisAddr: mr.Addr()}, nil)
	require.NoError(t, err)
	defer c.Close()

	d := newDispatcher()
	backendUp := false
	d.fns[constants.Vision] = func(extract.Input) (*extract.Result, error) {
		if !backendUp {
			return extract.NewResult("").
				Set("vision_unavailable", true).
				Set("fallback_from", string(constants.Vision)), nil
		}
		res := extract.NewResult("")
		res.AIDescription = "a red bicycle"
		return res, nil
	}
	p := NewProcessor(Config{}, d, nil, WithCache(c))
	job := Job{Data: []byte("png bytes"), Filename: "bike.png"}

	first, err := p.Process(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, first.Result.MetaBool("vision_unavailable"))

	backendUp = true
	second, err := p.Process(context.Background(), job)
	require.NoError(t, err)
	assert.False(t, second.Cached)
	assert.Equal(t, "a red bicycle", second.Result.AIDescription)

	third, err := p.Process(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, third.Cached)
	assert.Len(t, d.Calls(), 2)
}

func TestCanceledJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := newDispatcher()
	d.fns[constants.TextNative] = func(extract.Input) (*extract.Result, error) {
		cancel()
		return extract.NewResult("partial"), nil
	}
	p := NewProcessor(Config{}, d, nil)
	out, err := p.Process(ctx, Job{Data: []byte("x")})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, common.KindCanceled, out.ErrorKind)
}

func TestOutcomeSummary(t *testing.T) {
	out := Outcome{
		JobID:    "j",
		Strategy: constants.Vision,
		Status:   constants.JobStatusDone,
		Result:   &extract.Result{ExtractedText: "abc", AIDescription: "a cat", Metadata: map[string]any{"width": 3}},
	}
	s := out.Summary()
	assert.Equal(t, "vision", s["strategy"])
	assert.Equal(t, true, s["has_text"])
	assert.Equal(t, 3, s["text_length"])
	assert.Equal(t, true, s["has_description"])
}

func TestProcessRejectsMalformedJobID(t *testing.T) {
	d := newDispatcher()
	p := NewProcessor(Config{}, d, nil)

	out, err := p.Process(context.Background(), Job{ID: "job-1", Data: []byte("x"), Filename: "a.txt"})
	require.Error(t, err)
	assert.Equal(t, common.KindInvalidInput, out.ErrorKind)
	assert.Empty(t, d.Calls())

	id := "6f1c1f0e-8f55-4d8a-9a51-0c7a6d2f2a10"
	out, err = p.Process(context.Background(), Job{ID: id, Data: []byte("x"), Filename: "a.txt"})
	require.NoError(t, err)
	assert.Equal(t, id, out.JobID)
}
