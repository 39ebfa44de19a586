package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"healthshield-ai/internal/model"
)

// DocumentStore mirrors repository.DocumentRepository in memory.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]model.Document
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]model.Document)}
}

func (s *DocumentStore) Create(ctx context.Context, doc *model.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[doc.ID]; exists {
		return fmt.Errorf("create document failed: duplicate id %q", doc.ID)
	}
	s.docs[doc.ID] = *doc
	return nil
}

func (s *DocumentStore) ListByOwnerID(ctx context.Context, ownerID string) ([]model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	list := make([]model.Document, 0)
	for _, d := range s.docs {
		if d.OwnerID == ownerID {
			list = append(list, d)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].UploadedAt.Equal(list[j].UploadedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})
	return list, nil
}

func (s *DocumentStore) ListByIDsAndOwnerID(ctx context.Context, ids []string, ownerID string) ([]model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []model.Document
	for _, id := range ids {
		if d, ok := s.docs[id]; ok && d.OwnerID == ownerID {
			list = append(list, d)
		}
	}
	return list, nil
}

func (s *DocumentStore) GetByIDAndOwnerID(ctx context.Context, id, ownerID string) (*model.Document, error) {
	list, err := s.ListByIDsAndOwnerID(ctx, []string{id}, ownerID)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}
