// Package server exposes extractd's strategy availability over the standard
// gRPC health protocol.
package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/content-extractor/constants"
)

// HealthChecker probes every strategy. *registry.Registry satisfies it.
type HealthChecker interface {
	HealthCheckAll(ctx context.Context) map[constants.Strategy]bool
}

// ServiceName is the health service name reported for a strategy.
func ServiceName(s constants.Strategy) string { return "extract." + string(s) }

// HealthReporter mirrors the registry's health map into a grpc health server:
// one service per strategy, plus "extract" which is SERVING only while every
// strategy is available. The empty service tracks process liveness.
type HealthReporter struct {
	hs       *health.Server
	checker  HealthChecker
	interval time.Duration
	logger   *slog.Logger
}

func NewHealthReporter(hs *health.Server, checker HealthChecker, interval time.Duration, logger *slog.Logger) *HealthReporter {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = constants.HealthRefreshInterval
	}
	return &HealthReporter{hs: hs, checker: checker, interval: interval, logger: logger}
}

// Refresh probes once and updates every service status.
func (r *HealthReporter) Refresh(ctx context.Context) map[constants.Strategy]bool {
	start := time.Now()
	m := r.checker.HealthCheckAll(ctx)
	all := true
	var down []string
	for _, s := range constants.AllStrategies() {
		st := healthpb.HealthCheckResponse_SERVING
		if !m[s] {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			all = false
			down = append(down, string(s))
		}
		r.hs.SetServingStatus(ServiceName(s), st)
	}
	agg := healthpb.HealthCheckResponse_SERVING
	if !all {
		agg = healthpb.HealthCheckResponse_NOT_SERVING
	}
	r.hs.SetServingStatus("extract", agg)
	r.hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	r.logger.Debug("health.refresh", "unavailable", down, "elapsed_ms", time.Since(start).Milliseconds())
	return m
}

// Run refreshes immediately and then every interval until ctx is done, after
// which every service is reported NOT_SERVING.
func (r *HealthReporter) Run(ctx context.Context) {
	r.Refresh(ctx)
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.hs.Shutdown()
			return
		case <-t.C:
			r.Refresh(ctx)
		}
	}
}
