package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/common"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs real processes. The child is killed when ctx is done.
type ExecRunner struct {
	logger *slog.Logger
}

func NewExec(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{logger: logger}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = 2 * time.Second
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	dur := time.Since(start)

	if err != nil {
		r.logger.Error("exec failed",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", dur.Milliseconds(),
			"error", err,
			"stderr", truncate(errb.String(), constants.StderrLogCapBytes),
		)
		return out.Bytes(), errb.Bytes(), Classify(ctx, name, err, errb.Bytes())
	}
	r.logger.Debug("exec ok",
		"cmd", name,
		"args", strings.Join(args, " "),
		"duration_ms", dur.Milliseconds(),
		"stdout_bytes", out.Len(),
		"stderr_bytes", errb.Len(),
	)
	return out.Bytes(), errb.Bytes(), nil
}

var transientMarkers = []string{
	"out of memory",
	"cannot allocate memory",
	"resource temporarily unavailable",
	"no space left on device",
	"too many open files",
}

// Classify maps a process error onto the error taxonomy.
func Classify(ctx context.Context, name string, err error, stderr []byte) error {
	if err == nil {
		return nil
	}
	var ae *common.AppError
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, exec.ErrNotFound) {
		return common.DependencyMissing(fmt.Sprintf("%s not found in PATH", name), err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return common.Timeout(fmt.Sprintf("%s exceeded its time budget", name), ctxErr)
		}
		return fmt.Errorf("%s: %w", name, ctxErr)
	}
	msg := strings.TrimSpace(truncate(string(stderr), 512))
	if msg == "" {
		msg = err.Error()
	}
	transient := ExitCode(err) == -1
	low := strings.ToLower(msg)
	for _, m := range transientMarkers {
		if strings.Contains(low, m) {
			transient = true
			break
		}
	}
	return common.ToolFailed(fmt.Sprintf("%s: %s", name, msg), err, transient)
}

// ExitCode returns the process exit code found in err, -1 for a signal
// kill, or 0 when err carries no exit status.
func ExitCode(err error) int {
	var ec interface{ ExitCode() int }
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return 0
}

// Probe reports whether a tool is installed and answers a version query.
// Some poppler builds exit 99 after printing their version.
func Probe(ctx context.Context, r Runner, name string, args ...string) bool {
	ctx, cancel := context.WithTimeout(ctx, constants.HealthProbeTimeout)
	defer cancel()
	_, _, err := r.Run(ctx, name, args...)
	if err == nil {
		return true
	}
	if common.KindOf(err) == common.KindDependencyMissing || ctx.Err() != nil {
		return false
	}
	return ExitCode(err) == 99
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
