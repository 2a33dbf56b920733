package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/content-extractor/internal/extract"
)

// Outbox hands finished jobs to the downstream chunker by writing one
// <job_id>.json document per outcome into Dir.
type Outbox struct {
	dir    string
	logger *slog.Logger
}

// Envelope is the document written for each outcome.
type Envelope struct {
	JobID        string          `json:"job_id"`
	Filename     string          `json:"filename"`
	Strategy     string          `json:"strategy"`
	Cached       bool            `json:"cached"`
	Escalated    bool            `json:"escalated,omitempty"`
	ElapsedMS    int64           `json:"elapsed_ms"`
	Result       *extract.Result `json:"result"`
	OriginalText string          `json:"original_text,omitempty"`
}

func NewOutbox(dir string, logger *slog.Logger) (*Outbox, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create outbox: %w", err)
	}
	return &Outbox{dir: dir, logger: logger}, nil
}

// Deliver writes atomically: a partially written envelope is never visible
// under its final name.
func (o *Outbox) Deliver(ctx context.Context, out Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := Envelope{
		JobID:        out.JobID,
		Filename:     out.Filename,
		Strategy:     string(out.Strategy),
		Cached:       out.Cached,
		Escalated:    out.Escalated,
		ElapsedMS:    out.Elapsed.Milliseconds(),
		Result:       out.Result,
		OriginalText: out.OriginalText,
	}
	b, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	final := filepath.Join(o.dir, out.JobID+".json")
	tmp, err := os.CreateTemp(o.dir, ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("outbox temp: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("outbox write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("outbox close: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return fmt.Errorf("outbox rename: %w", err)
	}
	o.logger.Debug("pipeline.outbox.written", "path", final, "bytes", len(b))
	return nil
}
