package app

import (
	"context"

	"healthshield-ai/internal/model"
)

// BlobStore holds raw uploaded bytes by key.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// DocumentStore holds document metadata. Lookups are always owner-scoped.
type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	ListByOwnerID(ctx context.Context, ownerID string) ([]model.Document, error)
	ListByIDsAndOwnerID(ctx context.Context, ids []string, ownerID string) ([]model.Document, error)
	GetByIDAndOwnerID(ctx context.Context, id, ownerID string) (*model.Document, error)
}

// DocumentListCache caches per-owner listings. GetDocuments returns the
// version it read at; SetDocuments with a version older than the latest
// DeleteDocuments must not become visible.
type DocumentListCache interface {
	GetDocuments(ctx context.Context, ownerID string) ([]model.Document, int64, bool, error)
	SetDocuments(ctx context.Context, ownerID string, version int64, docs []model.Document) error
	DeleteDocuments(ctx context.Context, ownerID string) error
}

// IndexDispatcher hands an index job to whatever runs it in the background.
type IndexDispatcher interface {
	Dispatch(ctx context.Context, job model.IndexJob) error
}
