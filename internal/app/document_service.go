package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"healthshield-ai/internal/model"
	"healthshield-ai/internal/platform/logger"
)

const defaultMimeType = "application/octet-stream"

type DocumentService struct {
	log        *logger.Logger
	blobs      BlobStore
	documents  DocumentStore
	cache      DocumentListCache
	dispatcher IndexDispatcher
	maxBytes   int64
	now        func() time.Time
}

// NewDocumentService wires the upload flow. cache may be nil.
func NewDocumentService(
	log *logger.Logger,
	blobs BlobStore,
	documents DocumentStore,
	cache DocumentListCache,
	dispatcher IndexDispatcher,
	maxBytes int64,
) *DocumentService {
	return &DocumentService{
		log:        log.With("service", "DocumentService"),
		blobs:      blobs,
		documents:  documents,
		cache:      cache,
		dispatcher: dispatcher,
		maxBytes:   maxBytes,
		now:        time.Now,
	}
}

type UploadInput struct {
	OwnerID  string
	Name     string
	MimeType string
	Size     int64
	Folder   string
	Data     string
}

// Upload stores the blob, then the metadata record. Indexing is dispatched
// afterwards and never fails the upload.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*model.Document, error) {
	ownerID := strings.TrimSpace(input.OwnerID)
	name := strings.TrimSpace(input.Name)
	if ownerID == "" || name == "" {
		return nil, ErrInvalidInput
	}
	folder, ok := model.NormalizeFolder(input.Folder)
	if !ok {
		return nil, ErrUnsupportedFolder
	}
	data, err := decodeBase64(input.Data)
	if err != nil {
		return nil, ErrInvalidInput
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, ErrPayloadTooLarge
	}
	mimeType := strings.TrimSpace(input.MimeType)
	if mimeType == "" {
		mimeType = defaultMimeType
	}

	id := uuid.NewString()
	doc := &model.Document{
		ID:          id,
		OwnerID:     ownerID,
		Name:        name,
		MimeType:    mimeType,
		Size:        int64(len(data)),
		FolderClass: folder,
		StorageKey:  StorageKey(ownerID, id, name),
		UploadedAt:  s.now().UTC(),
	}
	if input.Size > 0 && input.Size != doc.Size {
		s.log.Warn("declared size differs from payload", "document_id", id, "declared", input.Size, "actual", doc.Size)
	}

	if err := s.blobs.Put(ctx, doc.StorageKey, data, mimeType); err != nil {
		s.log.Error("store blob failed", "document_id", id, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		s.log.Error("insert document metadata failed", "document_id", id, "error", err)
		// the blob has no metadata record pointing at it
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), doc.StorageKey); delErr != nil {
			s.log.Warn("remove orphaned blob failed", "document_id", id, "storage_key", doc.StorageKey, "error", delErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if s.cache != nil {
		if err := s.cache.DeleteDocuments(ctx, ownerID); err != nil {
			s.log.Warn("invalidate document list cache failed", "owner_id", ownerID, "error", err)
		}
	}
	if doc.Indexable() && s.dispatcher != nil {
		job := model.IndexJob{DocumentID: doc.ID, OwnerID: doc.OwnerID}
		if err := s.dispatcher.Dispatch(ctx, job); err != nil {
			s.log.Warn("dispatch index job failed", "document_id", id, "error", err)
		}
	}

	s.log.Info("document uploaded", "document_id", id, "owner_id", ownerID, "folder", folder, "size", doc.Size)
	return doc, nil
}

// ListDocuments returns the owner's documents, newest first.
func (s *DocumentService) ListDocuments(ctx context.Context, ownerID string) ([]model.Document, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, ErrInvalidInput
	}

	var (
		version   int64
		cacheable bool
	)
	if s.cache != nil {
		docs, v, ok, err := s.cache.GetDocuments(ctx, ownerID)
		if err != nil {
			s.log.Warn("read document list cache failed", "owner_id", ownerID, "error", err)
		} else if ok {
			return docs, nil
		} else {
			version, cacheable = v, true
		}
	}

	// the version is read before the database so an upload in between
	// leaves this listing on a stale version
	docs, err := s.documents.ListByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if cacheable {
		if err := s.cache.SetDocuments(ctx, ownerID, version, docs); err != nil {
			s.log.Warn("write document list cache failed", "owner_id", ownerID, "error", err)
		}
	}
	return docs, nil
}

// StorageKey is the blob key of a document.
func StorageKey(ownerID, documentID, name string) string {
	return ownerID + "/" + documentID + "-" + name
}

// decodeBase64 accepts standard base64 with or without a data URL prefix.
func decodeBase64(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, ";base64,"); i >= 0 && strings.HasPrefix(raw, "data:") {
		raw = raw[i+len(";base64,"):]
	}
	if raw == "" {
		return nil, fmt.Errorf("empty payload")
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return base64.RawStdEncoding.DecodeString(raw)
	}
	return data, nil
}
