package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
	"github.com/joseph-ayodele/content-extractor/internal/pipeline"
)

// FSIngestor reads from the local filesystem and submits one job per file.
// Files whose content was already submitted are skipped.
type FSIngestor struct {
	Submit      Submitter
	AllowedExts map[string]struct{} // lowercased sans '.'; nil -> every known extension
	MaxBytes    int64
	Options     extract.Options
	Logger      *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewFSIngestor(submit Submitter, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{Submit: submit, Logger: logger, seen: make(map[string]struct{})}
}

func (i *FSIngestor) IngestPath(ctx context.Context, path string) (Result, error) {
	out := Result{SourcePath: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}
	out.SourcePath = abs
	if !AllowedExt(filepath.Ext(abs), i.AllowedExts) {
		return out, common.InvalidInputf("unsupported or missing extension: %q", filepath.Ext(abs))
	}

	data, err := i.read(abs)
	if err != nil {
		return out, err
	}
	sum := sha256.Sum256(data)
	out.HashHex = hex.EncodeToString(sum[:])
	out.SizeBytes = int64(len(data))

	i.mu.Lock()
	if i.seen == nil {
		i.seen = make(map[string]struct{})
	}
	_, dup := i.seen[out.HashHex]
	i.seen[out.HashHex] = struct{}{}
	i.mu.Unlock()
	if dup {
		out.Deduplicated = true
		i.Logger.Debug("ingest.dedup", "path", abs, "sha256", out.HashHex)
		return out, nil
	}

	job := pipeline.Job{
		Data:        data,
		Filename:    filepath.Base(abs),
		MIME:        MIMEOf(abs),
		Options:     i.Options,
		SubmittedAt: time.Now().UTC(),
	}
	if err := i.Submit.Enqueue(ctx, job); err != nil {
		i.forget(out.HashHex)
		return out, fmt.Errorf("submit %s: %w", abs, err)
	}
	i.Logger.Info("ingest.submitted", "path", abs, "size_bytes", out.SizeBytes)
	return out, nil
}

func (i *FSIngestor) read(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if i.MaxBytes > 0 {
		r = io.LimitReader(f, i.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if i.MaxBytes > 0 && int64(len(data)) > i.MaxBytes {
		return nil, common.InvalidInputf("%s exceeds %d bytes", filepath.Base(path), i.MaxBytes)
	}
	return data, nil
}

func (i *FSIngestor) forget(hash string) {
	i.mu.Lock()
	delete(i.seen, hash)
	i.mu.Unlock()
}

// IngestDirectory walks root, skips hidden if requested,
// and calls IngestPath for each file. Returns per-file results + aggregate stats.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]Result, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, common.InvalidInputf("root path is required")
	}

	var results []Result
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, Result{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path), i.AllowedExts) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			return nil
		}
		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	i.Logger.Info("ingest.directory.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return results, stats, err
}
