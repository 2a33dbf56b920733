// Package backendtest provides deterministic backends for adapter tests.
package backendtest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/joseph-ayodele/content-extractor/internal/backend"
	"github.com/joseph-ayodele/content-extractor/internal/common"
)

// Vision answers every image with Describe(call index) or a fixed string.
type Vision struct {
	Description string
	Describe    func(n int, image []byte, prompt string) (string, error)
	Err         error
	Unhealthy   bool

	calls    atomic.Int64
	inFlight atomic.Int64
	maxSeen  atomic.Int64
	// Block, when set, is waited on inside every call.
	Block chan struct{}
}

var _ backend.VisionBackend = (*Vision)(nil)

func (v *Vision) DescribeImage(ctx context.Context, image []byte, _ string, prompt string) (string, error) {
	n := int(v.calls.Add(1))
	cur := v.inFlight.Add(1)
	defer v.inFlight.Add(-1)
	for {
		seen := v.maxSeen.Load()
		if cur <= seen || v.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}
	if v.Block != nil {
		select {
		case <-v.Block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if v.Err != nil {
		return "", v.Err
	}
	if v.Describe != nil {
		return v.Describe(n, image, prompt)
	}
	if v.Description != "" {
		return v.Description, nil
	}
	return fmt.Sprintf("frame %d", n), nil
}

func (v *Vision) HealthCheck(context.Context) bool { return !v.Unhealthy }
func (v *Vision) ModelName() string                 { return "fake-vision" }

// Calls is the number of DescribeImage invocations.
func (v *Vision) Calls() int { return int(v.calls.Load()) }

// MaxInFlight is the highest observed number of concurrent calls.
func (v *Vision) MaxInFlight() int { return int(v.maxSeen.Load()) }

// Transcriber returns Segments for every call, or the result of Fn.
type Transcriber struct {
	Segments  []backend.Segment
	Fn        func(n int, audio []byte, opts backend.TranscribeOptions) (*backend.Transcript, error)
	Err       error
	Unhealthy bool

	mu    sync.Mutex
	calls []backend.TranscribeOptions
}

var _ backend.TranscriptionBackend = (*Transcriber)(nil)

func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, opts backend.TranscribeOptions) (*backend.Transcript, error) {
	t.mu.Lock()
	t.calls = append(t.calls, opts)
	n := len(t.calls)
	t.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.Err != nil {
		return nil, t.Err
	}
	if t.Fn != nil {
		return t.Fn(n, audio, opts)
	}
	tr := &backend.Transcript{Segments: append([]backend.Segment(nil), t.Segments...)}
	for i, s := range tr.Segments {
		if i > 0 {
			tr.Text += " "
		}
		tr.Text += s.Text
	}
	return tr, nil
}

func (t *Transcriber) HealthCheck(context.Context) bool { return !t.Unhealthy }
func (t *Transcriber) ModelName() string                 { return "fake-whisper" }

func (t *Transcriber) Calls() []backend.TranscribeOptions {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]backend.TranscribeOptions(nil), t.calls...)
}

// Generator calls Fn, or returns the last maxTokens*4 bytes of the prompt,
// which is where the payload text sits.
type Generator struct {
	Fn        func(prompt string, maxTokens int) (string, error)
	Unhealthy bool

	calls atomic.Int64
}

var _ backend.GenerationBackend = (*Generator)(nil)

func (g *Generator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	g.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.Fn != nil {
		return g.Fn(prompt, maxTokens)
	}
	limit := maxTokens * 4
	if limit <= 0 || limit > len(prompt) {
		limit = len(prompt)
	}
	return prompt[len(prompt)-limit:], nil
}

func (g *Generator) HealthCheck(context.Context) bool { return !g.Unhealthy }
func (g *Generator) ModelName() string                 { return "fake-llm" }

func (g *Generator) Calls() int { return int(g.calls.Load()) }

// Unavailable is the error a backend returns when its server is down.
var Unavailable = common.ModelUnavailable("fake backend down", nil)
