package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/pipeline"
)

type recorder struct {
	mu   sync.Mutex
	jobs []pipeline.Job
	err  error
}

func (r *recorder) Enqueue(_ context.Context, job pipeline.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, j := range r.jobs {
		out = append(out, j.Filename)
	}
	sort.Strings(out)
	return out
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestIngestDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "notes.md"), "# notes")
	writeFile(t, filepath.Join(root, "sub", "data.json"), `{"a":1}`)
	writeFile(t, filepath.Join(root, "sub", "copy.md"), "# notes")
	writeFile(t, filepath.Join(root, ".hidden", "secret.txt"), "x")
	writeFile(t, filepath.Join(root, "binary.xyz"), "x")

	rec := &recorder{}
	ing := NewFSIngestor(rec, nil)
	results, stats, err := ing.IngestDirectory(context.Background(), root, true)
	require.NoError(t, err)

	assert.Equal(t, uint32(3), stats.Matched)
	assert.Equal(t, uint32(3), stats.Succeeded)
	assert.Equal(t, uint32(1), stats.Deduplicated)
	assert.Equal(t, uint32(0), stats.Failed)
	assert.Len(t, results, 3)
	assert.Len(t, rec.names(), 2)
	assert.Contains(t, rec.names(), "data.json")

	for _, j := range rec.jobs {
		if j.Filename == "data.json" {
			assert.Equal(t, "application/json", j.MIME)
			assert.Equal(t, `{"a":1}`, string(j.Data))
		}
	}
}

func TestIngestDirectoryIncludesHidden(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".hidden", "secret.txt"), "x")
	rec := &recorder{}
	_, stats, err := NewFSIngestor(rec, nil).IngestDirectory(context.Background(), root, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), stats.Succeeded)
}

func TestIngestPathErrors(t *testing.T) {
	root := t.TempDir()
	big := filepath.Join(root, "big.txt")
	writeFile(t, big, "0123456789abcdef")
	odd := filepath.Join(root, "file.unknownext")
	writeFile(t, odd, "x")

	rec := &recorder{}
	ing := NewFSIngestor(rec, nil)
	ing.MaxBytes = 8

	_, err := ing.IngestPath(context.Background(), big)
	assert.Equal(t, common.KindInvalidInput, common.KindOf(err))

	_, err = ing.IngestPath(context.Background(), odd)
	assert.Equal(t, common.KindInvalidInput, common.KindOf(err))

	_, err = ing.IngestPath(context.Background(), filepath.Join(root, "missing.txt"))
	assert.Error(t, err)
	assert.Empty(t, rec.names())
}

func TestSubmitFailureIsRetriable(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.txt")
	writeFile(t, path, "hello")

	rec := &recorder{err: errors.New("queue closed")}
	ing := NewFSIngestor(rec, nil)
	_, err := ing.IngestPath(context.Background(), path)
	require.Error(t, err)

	rec.err = nil
	r, err := ing.IngestPath(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, r.Deduplicated)
	assert.Equal(t, []string{"a.txt"}, rec.names())
}

func TestAllowedExtensions(t *testing.T) {
	assert.True(t, AllowedExt(".PDF", nil))
	assert.True(t, AllowedExt("go", nil))
	assert.False(t, AllowedExt("", nil))
	allow := ExtSet([]string{" .PNG", "pdf", ""})
	assert.True(t, AllowedExt("png", allow))
	assert.False(t, AllowedExt("go", allow))
	assert.Nil(t, ExtSet(nil))
	assert.True(t, IsHidden("/a/.git"))
	assert.False(t, IsHidden("."))
}

func TestWatcherEmitsNewFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "existing.txt"), "old")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true})
	require.NoError(t, err)

	first := <-events
	assert.Equal(t, filepath.Join(root, "existing.txt"), first)

	writeFile(t, filepath.Join(root, "skip.unknownext"), "x")
	writeFile(t, filepath.Join(root, "new.csv"), "a,b")
	select {
	case p := <-events:
		assert.Equal(t, filepath.Join(root, "new.csv"), p)
	case <-time.After(5 * time.Second):
		t.Fatal("no event for new file")
	}

	cancel()
	for range events {
	}
}

func TestWatchSubmitsDebounced(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	ing := NewFSIngestor(rec, nil)

	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, WatchConfig{Roots: []string{root}, Debounce: 20 * time.Millisecond}, ing)
	}()
	// give the watcher a moment to register the root
	time.Sleep(50 * time.Millisecond)

	path := filepath.Join(root, "report.md")
	writeFile(t, path, "# v1")
	require.NoError(t, os.WriteFile(path, []byte("# v2"), 0o644))

	require.Eventually(t, func() bool { return len(rec.names()) >= 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestStartWatcherWithoutRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{})
	assert.Error(t, err)
}
