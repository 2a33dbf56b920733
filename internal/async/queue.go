package async

import (
	"context"
	"errors"

	"github.com/joseph-ayodele/content-extractor/internal/pipeline"
)

// ErrQueueClosed is returned by Enqueue after Shutdown has begun.
var ErrQueueClosed = errors.New("queue closed")

// Processor runs one job. *pipeline.Processor satisfies it.
type Processor interface {
	Process(ctx context.Context, job pipeline.Job) (pipeline.Outcome, error)
}

type Queue interface {
	Enqueue(ctx context.Context, job pipeline.Job) error
	Shutdown(ctx context.Context)
}
