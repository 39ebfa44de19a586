package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"healthshield-ai/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

// ListByOwnerID returns the owner's documents, newest first.
func (r *DocumentRepository) ListByOwnerID(ctx context.Context, ownerID string) ([]model.Document, error) {
	var list []model.Document
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("uploaded_at DESC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

// ListByIDsAndOwnerID drops ids that belong to another owner.
func (r *DocumentRepository) ListByIDsAndOwnerID(ctx context.Context, ids []string, ownerID string) ([]model.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var list []model.Document
	if err := r.db.WithContext(ctx).
		Where("id IN ? AND owner_id = ?", ids, ownerID).
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents by ids failed: %w", err)
	}
	return list, nil
}

func (r *DocumentRepository) GetByIDAndOwnerID(ctx context.Context, id, ownerID string) (*model.Document, error) {
	list, err := r.ListByIDsAndOwnerID(ctx, []string{id}, ownerID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}
