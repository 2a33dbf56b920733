// Package registry binds one adapter to each strategy and runs every
// invocation under the orchestration policy: time budgets, health gating
// and declarative fallback chains.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
)

type healthEntry struct {
	ok bool
	at time.Time
}

type Registry struct {
	adapters map[constants.Strategy]extract.Adapter
	policy   Policy
	logger   *slog.Logger

	mu     sync.RWMutex
	health map[constants.Strategy]healthEntry
	now    func() time.Time
}

// New requires exactly one adapter for each of the nine strategies.
func New(adapters []extract.Adapter, policy Policy, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	byStrategy := make(map[constants.Strategy]extract.Adapter, len(adapters))
	for _, a := range adapters {
		s := a.Strategy()
		if !s.Valid() {
			return nil, common.Internalf("adapter %q has unknown strategy %q", a.Name(), s)
		}
		if prev, dup := byStrategy[s]; dup {
			return nil, common.Internalf("strategy %s bound twice (%s, %s)", s, prev.Name(), a.Name())
		}
		byStrategy[s] = a
	}
	for _, s := range constants.AllStrategies() {
		if _, ok := byStrategy[s]; !ok {
			return nil, common.Internalf("no adapter registered for strategy %s", s)
		}
	}
	if policy.Rules == nil {
		policy = DefaultPolicy()
	}
	if policy.ProbeTimeout <= 0 {
		policy.ProbeTimeout = 2 * constants.HealthProbeTimeout
	}
	return &Registry{
		adapters: byStrategy,
		policy:   policy,
		logger:   logger,
		health:   make(map[constants.Strategy]healthEntry),
		now:      time.Now,
	}, nil
}

func (r *Registry) Has(s constants.Strategy) bool {
	_, ok := r.adapters[s]
	return ok
}

func (r *Registry) Adapter(s constants.Strategy) (extract.Adapter, bool) {
	a, ok := r.adapters[s]
	return a, ok
}

func (r *Registry) Policy() Policy { return r.policy }

// Dispatch runs the strategy's adapter. On failure the declared fallback
// chain is tried in order; each step runs when the previous attempt failed
// with one of its kinds. Exhausting the chain returns the original error.
func (r *Registry) Dispatch(ctx context.Context, s constants.Strategy, in extract.Input) (*extract.Result, error) {
	a, ok := r.adapters[s]
	if !ok {
		return nil, common.Internalf("no adapter registered for strategy %s", s)
	}
	rule := r.policy.Rules[s]
	logger := common.LoggerFromContext(ctx, r.logger).With("strategy", s, "filename", in.Filename)
	start := time.Now()

	var err error
	if rule.Gated && !r.Healthy(ctx, s) {
		err = common.DependencyMissing(fmt.Sprintf("%s is unavailable (health check failed)", a.Name()), nil)
		logger.Warn("registry.dispatch.gated")
	} else {
		logger.Debug("registry.dispatch.start", "size_bytes", len(in.Data))
		var res *extract.Result
		res, err = r.invoke(ctx, a, in.WithOptions(in.Options.For(s)))
		if err == nil {
			logger.Info("registry.dispatch.ok", "elapsed_ms", time.Since(start).Milliseconds())
			return res, nil
		}
	}
	if ctx.Err() != nil {
		return nil, err
	}

	original := err
	kind := common.KindOf(err)
	for _, fb := range rule.Fallbacks {
		if !fb.matches(kind) {
			continue
		}
		fa, ok := r.adapters[fb.Strategy]
		if !ok {
			continue
		}
		fin := in.WithOptions(in.Options.For(fb.Strategy).With(fb.Options))
		logger.Warn("registry.fallback.start",
			"fallback_strategy", fb.Strategy,
			"reason", kind,
			"error", err,
		)
		res, ferr := r.invoke(ctx, fa, fin)
		if ferr == nil {
			res.Set("fallback_from", string(s)).
				Set("fallback_strategy", string(fb.Strategy)).
				Set("fallback_reason", string(common.KindOf(original))).
				Set("fallback_error", original.Error())
			logger.Info("registry.fallback.ok",
				"fallback_strategy", fb.Strategy,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, original
		}
		err, kind = ferr, common.KindOf(ferr)
	}

	logger.Error("registry.dispatch.failed",
		"kind", common.KindOf(original),
		"error", original,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil, original
}

// invoke runs one adapter call under its time budget and maps the outcome
// onto the error taxonomy.
func (r *Registry) invoke(ctx context.Context, a extract.Adapter, in extract.Input) (res *extract.Result, err error) {
	budget := r.policy.Budget(a.Strategy(), in)
	cctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("adapter panic", "adapter", a.Name(), "panic", p, "stack", string(debug.Stack()))
			res, err = nil, common.Internalf("%s panicked: %v", a.Name(), p)
		}
	}()

	res, err = a.Extract(cctx, in)
	switch {
	case err == nil && res == nil:
		return nil, common.Internalf("%s returned no result", a.Name())
	case err == nil:
		return res, nil
	case ctx.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) && common.KindOf(err) != common.KindTimeout:
		return nil, common.Timeout(fmt.Sprintf("%s exceeded its %s budget", a.Name(), budget), err)
	}
	return nil, err
}

// Healthy returns the cached probe result for s, probing when the entry is
// older than the policy's TTL.
func (r *Registry) Healthy(ctx context.Context, s constants.Strategy) bool {
	r.mu.RLock()
	e, ok := r.health[s]
	r.mu.RUnlock()
	if ok && (r.policy.HealthTTL <= 0 || r.now().Sub(e.at) < r.policy.HealthTTL) {
		return e.ok
	}
	return r.probe(ctx, s)
}

func (r *Registry) probe(ctx context.Context, s constants.Strategy) bool {
	a, ok := r.adapters[s]
	if !ok {
		return false
	}
	pctx, cancel := context.WithTimeout(ctx, r.policy.ProbeTimeout)
	defer cancel()
	healthy := a.HealthCheck(pctx)

	r.mu.Lock()
	r.health[s] = healthEntry{ok: healthy, at: r.now()}
	r.mu.Unlock()
	return healthy
}

// HealthCheckAll probes every adapter concurrently and returns the
// per-strategy availability map.
func (r *Registry) HealthCheckAll(ctx context.Context) map[constants.Strategy]bool {
	strategies := constants.AllStrategies()
	results := make([]bool, len(strategies))
	var g errgroup.Group
	for i, s := range strategies {
		g.Go(func() error {
			results[i] = r.probe(ctx, s)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[constants.Strategy]bool, len(strategies))
	for i, s := range strategies {
		out[s] = results[i]
	}
	r.logger.Debug("registry.health", "health", out)
	return out
}

// AvailableStrategies lists the strategies whose adapters are currently
// healthy, in declaration order.
func (r *Registry) AvailableStrategies(ctx context.Context) []constants.Strategy {
	var out []constants.Strategy
	for _, s := range constants.AllStrategies() {
		if r.Healthy(ctx, s) {
			out = append(out, s)
		}
	}
	return out
}
