package app

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/backend"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/pipeline"
	"github.com/joseph-ayodele/content-extractor/internal/progress"
	"github.com/joseph-ayodele/content-extractor/internal/runner/runnertest"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	cfg := common.LoadConfig()
	cfg.Summarizer.Enabled = false
	cfg.Cache.RedisAddr = ""
	cfg.Database.DSN = ""
	cfg.Database.SQLitePath = "file:" + filepath.Join(t.TempDir(), "progress.db")
	return cfg
}

func TestAdaptersCoverEveryStrategy(t *testing.T) {
	adapters := Adapters(testConfig(t), backend.Set{}, runnertest.New(), nil)
	var got []constants.Strategy
	for _, a := range adapters {
		got = append(got, a.Strategy())
	}
	assert.ElementsMatch(t, constants.AllStrategies(), got)
}

func TestBuildAndProcess(t *testing.T) {
	store := progress.NewMemory()
	var delivered []pipeline.Outcome
	a, err := Build(context.Background(), testConfig(t), nil,
		WithStore(store),
		WithRunner(runnertest.New()),
		WithBackends(backend.Set{}),
		WithSink(pipeline.SinkFunc(func(_ context.Context, out pipeline.Outcome) error {
			delivered = append(delivered, out)
			return nil
		})),
	)
	require.NoError(t, err)
	defer a.Close()

	cases := []struct {
		name     string
		filename string
		data     string
		want     constants.Strategy
		contains string
	}{
		{name: "plain text", filename: "notes.txt", data: "meeting notes", want: constants.TextNative, contains: "meeting notes"},
		{name: "json", filename: "config.json", data: `{"service":"api","replicas":3}`, want: constants.StructuredExtract, contains: "service"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := a.Processor.Process(context.Background(), pipeline.Job{Data: []byte(tc.data), Filename: tc.filename})
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.Strategy)
			assert.Contains(t, out.Result.ExtractedText, tc.contains)

			latest, err := store.Latest(context.Background(), out.JobID)
			require.NoError(t, err)
			assert.Equal(t, constants.JobStatusDone, latest.Status)
		})
	}
	assert.Len(t, delivered, 2)
}

func TestBuildHealthWithoutTools(t *testing.T) {
	a, err := Build(context.Background(), testConfig(t), nil,
		WithStore(progress.NewMemory()),
		WithRunner(runnertest.New()),
		WithBackends(backend.Set{}),
		WithoutCache(),
	)
	require.NoError(t, err)
	defer a.Close()

	health := a.Registry.HealthCheckAll(context.Background())
	assert.Len(t, health, len(constants.AllStrategies()))
	assert.True(t, health[constants.TextNative])
	assert.True(t, health[constants.StructuredExtract])
	assert.False(t, health[constants.AudioTranscribe])
}

func TestBuildOpensSQLiteAndCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Cache.RedisAddr = mr.Addr()

	a, err := Build(context.Background(), cfg, nil, WithRunner(runnertest.New()), WithBackends(backend.Set{}))
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.Cache)
	_, ok := a.Store.(*progress.SQLite)
	assert.True(t, ok)

	job := pipeline.Job{Data: []byte("cache me"), Filename: "a.txt"}
	first, err := a.Processor.Process(context.Background(), job)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	second, err := a.Processor.Process(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, second.Cached)
}

func TestBuildUnreachableCacheDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.RedisAddr = "127.0.0.1:1"
	a, err := Build(context.Background(), cfg, nil,
		WithStore(progress.NewMemory()), WithRunner(runnertest.New()), WithBackends(backend.Set{}))
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.Cache)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(common.LogConfig{Level: "info"}, &buf).Info("app.ready", "cache", true)
	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "msg=app.ready"), line)
	assert.NotContains(t, line, "level=")

	buf.Reset()
	NewLogger(common.LogConfig{Level: "warn", Format: "json"}, &buf).Info("dropped")
	assert.Empty(t, buf.String())
	NewLogger(common.LogConfig{Level: "warn", Format: "json"}, &buf).Warn("kept")
	assert.Contains(t, buf.String(), `"msg":"kept"`)
}
