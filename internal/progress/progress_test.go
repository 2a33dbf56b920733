package progress

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/common"
)

func TestReportWithoutReporter(t *testing.T) {
	assert.NotPanics(t, func() { Report(context.Background(), 50, "x") })
}

func TestReportClamps(t *testing.T) {
	var got []int
	ctx := WithReporter(context.Background(), func(pct int, _ string) { got = append(got, pct) })
	Report(ctx, -5, "a")
	Report(ctx, 42, "b")
	Report(ctx, 150, "c")
	assert.Equal(t, []int{0, 42, 100}, got)
}

func TestSpan(t *testing.T) {
	assert.Equal(t, 20, Span(20, 80, 0, 4))
	assert.Equal(t, 50, Span(20, 80, 2, 4))
	assert.Equal(t, 80, Span(20, 80, 9, 4))
	assert.Equal(t, 20, Span(20, 80, 1, 0))
}

// exerciseStore runs the behaviour every Store implementation shares.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	job := uuid.NewString()

	_, err := s.Latest(ctx, job)
	require.ErrorIs(t, err, common.ErrNotFound)

	base := time.Now().Truncate(time.Millisecond)
	steps := []Marker{
		{JobID: job, Percent: constants.ProgressStarted, Status: constants.JobStatusRunning, Message: constants.MsgStarted, At: base},
		{JobID: job, Percent: constants.ProgressExtracting, Status: constants.JobStatusRunning, Message: constants.MsgExtracting, At: base.Add(time.Second)},
		{JobID: job, Percent: constants.ProgressDone, Status: constants.JobStatusDone, Message: constants.MsgDone, At: base.Add(2 * time.Second)},
	}
	for _, m := range steps {
		require.NoError(t, s.Mark(ctx, m))
	}
	require.NoError(t, s.Mark(ctx, Marker{JobID: uuid.NewString(), Percent: 10, Status: constants.JobStatusRunning}))

	latest, err := s.Latest(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, 100, latest.Percent)
	assert.Equal(t, constants.JobStatusDone, latest.Status)
	assert.True(t, latest.At.Equal(steps[2].At))

	hist, err := s.History(ctx, job)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	for i, m := range hist {
		assert.Equal(t, steps[i].Percent, m.Percent)
		assert.Equal(t, steps[i].Message, m.Message)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryStoreLimit(t *testing.T) {
	s := NewMemory()
	for i := 0; i < constants.ProgressHistoryLimit+5; i++ {
		require.NoError(t, s.Mark(context.Background(), Marker{JobID: "j", Percent: i}))
	}
	hist, err := s.History(context.Background(), "j")
	require.NoError(t, err)
	assert.Len(t, hist, constants.ProgressHistoryLimit)
	assert.Equal(t, 5, hist[0].Percent)
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "progress.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

func TestSQLiteStoreInMemory(t *testing.T) {
	s, err := OpenSQLite(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Mark(context.Background(), Marker{JobID: "a", Percent: 10, Status: constants.JobStatusRunning}))
	m, err := s.Latest(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 10, m.Percent)
	assert.False(t, m.At.IsZero())
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DB_URL")
	if dsn == "" {
		t.Skip("TEST_DB_URL not set")
	}
	s, err := OpenPostgres(context.Background(), common.DatabaseConfig{DSN: dsn}, nil)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Ping(context.Background(), time.Second))
	exerciseStore(t, s)
}

func TestOpenDefaultsToSQLite(t *testing.T) {
	s, err := Open(context.Background(), common.DatabaseConfig{SQLitePath: filepath.Join(t.TempDir(), "p.db")}, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &SQLite{}, s)
}

func TestTrackerIsMonotonic(t *testing.T) {
	store := NewMemory()
	tr := NewTracker(store, "job", nil)
	ctx := context.Background()

	tr.Mark(ctx, constants.JobStatusRunning, 10, "start")
	rep := tr.Reporter(ctx)
	rep(60, "page 3/5")
	rep(30, "fallback restarted")
	tr.Mark(ctx, constants.JobStatusDone, 100, "done")

	hist, err := store.History(ctx, "job")
	require.NoError(t, err)
	var pcts []int
	for _, m := range hist {
		pcts = append(pcts, m.Percent)
	}
	assert.Equal(t, []int{10, 60, 60, 100}, pcts)
	assert.Equal(t, constants.JobStatusDone, hist[3].Status)
}

func TestTrackerWithoutStore(t *testing.T) {
	tr := NewTracker(nil, "job", nil)
	assert.NotPanics(t, func() { tr.Mark(context.Background(), constants.JobStatusRunning, 10, "x") })
}
