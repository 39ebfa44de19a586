package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"healthshield-ai/internal/model"
)

const versionTTL = 24 * time.Hour

// DocumentCache keeps each tenant's document listing for a short TTL.
// Listings are stored under a per-owner version that DeleteDocuments bumps,
// so a listing read before an upload can never be written over the
// invalidation that upload made.
type DocumentCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewDocumentCache(client *redisv9.Client, ttl time.Duration) *DocumentCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &DocumentCache{
		client: client,
		ttl:    ttl,
	}
}

// GetDocuments returns the cached listing and the version it was read at.
// On a miss the version is still valid and should be passed to SetDocuments.
func (c *DocumentCache) GetDocuments(ctx context.Context, ownerID string) ([]model.Document, int64, bool, error) {
	version, err := c.client.Get(ctx, c.versionKey(ownerID)).Int64()
	if err != nil && err != redisv9.Nil {
		return nil, 0, false, fmt.Errorf("redis get documents version failed: %w", err)
	}

	raw, err := c.client.Get(ctx, c.listKey(ownerID, version)).Result()
	if err == redisv9.Nil {
		return nil, version, false, nil
	}
	if err != nil {
		return nil, version, false, fmt.Errorf("redis get documents failed: %w", err)
	}

	var docs []cachedDocument
	if err := json.Unmarshal([]byte(raw), &docs); err != nil {
		return nil, version, false, fmt.Errorf("unmarshal cached documents failed: %w", err)
	}
	out := make([]model.Document, len(docs))
	for i, d := range docs {
		out[i] = d.toModel()
	}
	return out, version, true, nil
}

func (c *DocumentCache) SetDocuments(ctx context.Context, ownerID string, version int64, docs []model.Document) error {
	cached := make([]cachedDocument, len(docs))
	for i, d := range docs {
		cached[i] = fromModel(d)
	}
	payload, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("marshal documents cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.listKey(ownerID, version), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set documents failed: %w", err)
	}
	return nil
}

// DeleteDocuments moves the owner to a new version and drops the old listing.
func (c *DocumentCache) DeleteDocuments(ctx context.Context, ownerID string) error {
	var incr *redisv9.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		incr = pipe.Incr(ctx, c.versionKey(ownerID))
		pipe.Expire(ctx, c.versionKey(ownerID), versionTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis bump documents version failed: %w", err)
	}
	if err := c.client.Del(ctx, c.listKey(ownerID, incr.Val()-1)).Err(); err != nil {
		return fmt.Errorf("redis delete documents failed: %w", err)
	}
	return nil
}

func (c *DocumentCache) versionKey(ownerID string) string {
	return fmt.Sprintf("documents:version:%s", ownerID)
}

func (c *DocumentCache) listKey(ownerID string, version int64) string {
	return fmt.Sprintf("documents:list:%s:%d", ownerID, version)
}

// cachedDocument keeps the storage key, which model.Document hides from JSON.
type cachedDocument struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	MimeType    string    `json:"mime_type"`
	Size        int64     `json:"size"`
	FolderClass string    `json:"folder_class"`
	StorageKey  string    `json:"storage_key"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

func fromModel(d model.Document) cachedDocument {
	return cachedDocument{
		ID:          d.ID,
		OwnerID:     d.OwnerID,
		Name:        d.Name,
		MimeType:    d.MimeType,
		Size:        d.Size,
		FolderClass: d.FolderClass,
		StorageKey:  d.StorageKey,
		UploadedAt:  d.UploadedAt,
	}
}

func (d cachedDocument) toModel() model.Document {
	return model.Document{
		ID:          d.ID,
		OwnerID:     d.OwnerID,
		Name:        d.Name,
		MimeType:    d.MimeType,
		Size:        d.Size,
		FolderClass: d.FolderClass,
		StorageKey:  d.StorageKey,
		UploadedAt:  d.UploadedAt,
	}
}
