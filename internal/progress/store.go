package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/common"
)

// Marker is one recorded progress stage of a job.
type Marker struct {
	JobID   string
	Percent int
	Status  constants.JobStatus
	Message string
	At      time.Time
}

// Store persists progress markers. Latest returns common.ErrNotFound for an
// unknown job.
type Store interface {
	Mark(ctx context.Context, m Marker) error
	Latest(ctx context.Context, jobID string) (Marker, error)
	History(ctx context.Context, jobID string) ([]Marker, error)
	Close() error
}

func notFound(jobID string) error {
	return fmt.Errorf("progress for job %s: %w", jobID, common.ErrNotFound)
}

// Memory keeps markers in process. At most limit markers are retained per job.
type Memory struct {
	mu    sync.RWMutex
	jobs  map[string][]Marker
	limit int
}

func NewMemory() *Memory {
	return &Memory{jobs: make(map[string][]Marker), limit: constants.ProgressHistoryLimit}
}

func (m *Memory) Mark(_ context.Context, mk Marker) error {
	if mk.At.IsZero() {
		mk.At = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h := append(m.jobs[mk.JobID], mk)
	if len(h) > m.limit {
		h = h[len(h)-m.limit:]
	}
	m.jobs[mk.JobID] = h
	return nil
}

func (m *Memory) Latest(_ context.Context, jobID string) (Marker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h := m.jobs[jobID]
	if len(h) == 0 {
		return Marker{}, notFound(jobID)
	}
	return h[len(h)-1], nil
}

func (m *Memory) History(_ context.Context, jobID string) ([]Marker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Marker(nil), m.jobs[jobID]...), nil
}

func (m *Memory) Close() error { return nil }

// Tracker records the markers of a single job. Store failures are logged and
// never fail the job. Percentages never go backwards: a marker below the last
// recorded one keeps the previous percentage.
type Tracker struct {
	store  Store
	jobID  string
	logger *slog.Logger

	mu   sync.Mutex
	last int
}

func NewTracker(store Store, jobID string, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: store, jobID: jobID, logger: logger}
}

// Mark records a marker with an explicit status.
func (t *Tracker) Mark(ctx context.Context, status constants.JobStatus, pct int, message string) {
	t.mu.Lock()
	if pct < t.last {
		pct = t.last
	}
	t.last = pct
	t.mu.Unlock()

	if t.store == nil {
		return
	}
	err := t.store.Mark(context.WithoutCancel(ctx), Marker{
		JobID:   t.jobID,
		Percent: pct,
		Status:  status,
		Message: message,
		At:      time.Now(),
	})
	if err != nil {
		t.logger.Warn("progress.mark.failed", "job_id", t.jobID, "pct", pct, "error", err)
	}
}

// Reporter adapts the tracker for adapters, recording RUNNING markers.
func (t *Tracker) Reporter(ctx context.Context) Reporter {
	return func(pct int, message string) {
		t.Mark(ctx, constants.JobStatusRunning, pct, message)
	}
}
