package app

import (
	"context"
	"fmt"

	"healthshield-ai/internal/model"
	"healthshield-ai/internal/pkg/pdfextract"
	"healthshield-ai/internal/platform/logger"
	"healthshield-ai/internal/rag"
)

type ChunkIndexer interface {
	Index(ctx context.Context, doc rag.DocumentRef, chunks []string) rag.IndexReport
}

// IndexService turns a stored policy PDF into indexed chunks.
type IndexService struct {
	log       *logger.Logger
	blobs     BlobStore
	documents DocumentStore
	indexer   ChunkIndexer
	chunkSize int
}

func NewIndexService(log *logger.Logger, blobs BlobStore, documents DocumentStore, indexer ChunkIndexer, chunkSize int) *IndexService {
	if chunkSize <= 0 {
		chunkSize = rag.DefaultChunkSize
	}
	return &IndexService{
		log:       log.With("service", "IndexService"),
		blobs:     blobs,
		documents: documents,
		indexer:   indexer,
		chunkSize: chunkSize,
	}
}

// IndexDocument extracts, chunks and indexes one document. It only fails when
// the document cannot be loaded; per-chunk failures are logged by the indexer.
func (s *IndexService) IndexDocument(ctx context.Context, job model.IndexJob) (rag.IndexReport, error) {
	doc, err := s.documents.GetByIDAndOwnerID(ctx, job.DocumentID, job.OwnerID)
	if err != nil {
		return rag.IndexReport{}, fmt.Errorf("load document failed: %w", err)
	}
	if doc == nil {
		return rag.IndexReport{}, ErrDocumentNotFound
	}
	if !doc.Indexable() {
		s.log.Debug("document not indexable", "document_id", doc.ID, "mime_type", doc.MimeType, "folder", doc.FolderClass)
		return rag.IndexReport{}, nil
	}

	data, err := s.blobs.Get(ctx, doc.StorageKey)
	if err != nil {
		return rag.IndexReport{}, fmt.Errorf("load document blob failed: %w", err)
	}

	text := pdfextract.Extract(data)
	chunks := rag.SplitText(text, s.chunkSize)
	if len(chunks) == 0 {
		s.log.Warn("no text extracted", "document_id", doc.ID)
		return rag.IndexReport{}, nil
	}

	report := s.indexer.Index(ctx, rag.DocumentRef{ID: doc.ID, OwnerID: doc.OwnerID, Name: doc.Name}, chunks)
	s.log.Info("document indexed",
		"document_id", doc.ID,
		"chunks", len(chunks),
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}
