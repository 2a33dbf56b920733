package progress

import "context"

// Reporter receives stage markers emitted from inside an extraction.
type Reporter func(pct int, message string)

type reporterKey struct{}

// WithReporter attaches r to ctx so adapters can report stages without
// knowing which job or store they belong to.
func WithReporter(ctx context.Context, r Reporter) context.Context {
	if r == nil {
		return ctx
	}
	return context.WithValue(ctx, reporterKey{}, r)
}

// Report emits a marker when ctx carries a reporter. pct is clamped to 0..100.
func Report(ctx context.Context, pct int, message string) {
	r, ok := ctx.Value(reporterKey{}).(Reporter)
	if !ok {
		return
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	r(pct, message)
}

// Span maps a step within [from, to] onto a percentage, for adapters that
// report per page or per chunk.
func Span(from, to, done, total int) int {
	if total <= 0 || to <= from {
		return from
	}
	if done > total {
		done = total
	}
	return from + (to-from)*done/total
}
