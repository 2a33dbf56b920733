// Package ingest discovers files on disk and submits them as extraction
// jobs, either by walking a directory once or by watching an inbox.
package ingest

import (
	"context"

	"github.com/joseph-ayodele/content-extractor/internal/pipeline"
)

// Result is the per-file ingest outcome.
type Result struct {
	SourcePath   string
	HashHex      string
	SizeBytes    int64
	Deduplicated bool
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Submitter receives the jobs built from ingested files. *async.ProcessorQueue
// satisfies it.
type Submitter interface {
	Enqueue(ctx context.Context, job pipeline.Job) error
}

// SubmitFunc adapts a function to Submitter.
type SubmitFunc func(ctx context.Context, job pipeline.Job) error

func (f SubmitFunc) Enqueue(ctx context.Context, job pipeline.Job) error { return f(ctx, job) }

// Ingestor is the behavior the daemon and CLI depend on.
type Ingestor interface {
	// IngestPath submits a single file.
	IngestPath(ctx context.Context, path string) (Result, error)
	// IngestDirectory submits all matching files under root.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]Result, DirStats, error)
}
