// Package runnertest provides a scripted Runner for adapter tests.
package runnertest

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/joseph-ayodele/content-extractor/internal/runner"
)

// Handler produces the canned output for one command invocation. It may
// write files (rendered pages, extracted audio) the caller expects to find.
type Handler func(ctx context.Context, args []string) (stdout, stderr []byte, err error)

// Call records one invocation.
type Call struct {
	Name string
	Args []string
}

// Fake dispatches by command name. Commands without a handler behave as if
// the binary were not installed.
type Fake struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []Call
}

var _ runner.Runner = (*Fake)(nil)

func New() *Fake {
	return &Fake{handlers: make(map[string]Handler)}
}

// On registers h for name and returns the fake for chaining.
func (f *Fake) On(name string, h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[name] = h
	return f
}

// Stdout registers a handler that always prints out.
func (f *Fake) Stdout(name, out string) *Fake {
	return f.On(name, func(context.Context, []string) ([]byte, []byte, error) {
		return []byte(out), nil, nil
	})
}

func (f *Fake) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Name: name, Args: append([]string(nil), args...)})
	h, ok := f.handlers[name]
	f.mu.Unlock()
	if !ok {
		return nil, nil, runner.Classify(ctx, name, fmt.Errorf("exec: %q: %w", name, exec.ErrNotFound), nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, runner.Classify(ctx, name, err, nil)
	}
	stdout, stderr, err := h(ctx, args)
	return stdout, stderr, runner.Classify(ctx, name, err, stderr)
}

// Calls returns a snapshot of recorded invocations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the invocations of one command.
func (f *Fake) CallsTo(name string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// ExitError is a process failure with a fixed exit code.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d: %s", e.Code, strings.TrimSpace(e.Stderr))
}

func (e *ExitError) ExitCode() int { return e.Code }
