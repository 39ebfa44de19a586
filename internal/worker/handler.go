package worker

import (
	"context"

	"healthshield-ai/internal/model"
	"healthshield-ai/internal/rag"
)

// IndexHandler runs one index job.
type IndexHandler interface {
	IndexDocument(ctx context.Context, job model.IndexJob) (rag.IndexReport, error)
}
