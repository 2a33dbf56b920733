package server

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/content-extractor/constants"
)

type checkerFunc func(ctx context.Context) map[constants.Strategy]bool

func (f checkerFunc) HealthCheckAll(ctx context.Context) map[constants.Strategy]bool { return f(ctx) }

func allHealthyExcept(down ...constants.Strategy) checkerFunc {
	return func(context.Context) map[constants.Strategy]bool {
		m := make(map[constants.Strategy]bool)
		for _, s := range constants.AllStrategies() {
			m[s] = true
		}
		for _, s := range down {
			m[s] = false
		}
		return m
	}
}

func status(t *testing.T, hs *health.Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestRefresh(t *testing.T) {
	hs := health.NewServer()
	r := NewHealthReporter(hs, allHealthyExcept(constants.PdfOcr), time.Minute, nil)
	m := r.Refresh(context.Background())
	assert.False(t, m[constants.PdfOcr])

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, hs, "extract.pdf_ocr"))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, hs, "extract.text_native"))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, hs, "extract"))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, hs, ""))

	r.checker = allHealthyExcept()
	r.Refresh(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, hs, "extract.pdf_ocr"))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, hs, "extract"))
}

func TestRunRefreshesPeriodically(t *testing.T) {
	var probes atomic.Int64
	checker := checkerFunc(func(ctx context.Context) map[constants.Strategy]bool {
		probes.Add(1)
		return allHealthyExcept()(ctx)
	})
	hs := health.NewServer()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewHealthReporter(hs, checker, 5*time.Millisecond, nil).Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return probes.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, hs, "extract.vision"))
}

func TestServeOverGRPC(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- Serve(ctx, lis, allHealthyExcept(constants.Vision), time.Minute, nil) }()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	require.Eventually(t, func() bool {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "extract.vision"})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_NOT_SERVING
	}, 5*time.Second, 10*time.Millisecond)

	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName(constants.CodeAst)})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	cancel()
	assert.NoError(t, <-served)
}
