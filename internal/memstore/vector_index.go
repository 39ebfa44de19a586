package memstore

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"healthshield-ai/internal/rag"
)

// VectorIndex is a brute-force cosine similarity index.
type VectorIndex struct {
	mu      sync.RWMutex
	records map[string]rag.VectorRecord
}

func NewVectorIndex() *VectorIndex {
	return &VectorIndex{records: make(map[string]rag.VectorRecord)}
}

func (x *VectorIndex) Upsert(ctx context.Context, records []rag.VectorRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, r := range records {
		if r.ID == "" {
			return errors.New("vector id is required")
		}
		if len(r.Values) == 0 {
			return errors.New("vector values are required")
		}
		meta := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		x.records[r.ID] = rag.VectorRecord{ID: r.ID, Values: append([]float32(nil), r.Values...), Metadata: meta}
	}
	return nil
}

func (x *VectorIndex) Query(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]rag.VectorMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = rag.DefaultTopK
	}
	x.mu.RLock()
	matches := make([]rag.VectorMatch, 0, len(x.records))
	for _, r := range x.records {
		if !matchesFilter(r.Metadata, filter) {
			continue
		}
		matches = append(matches, rag.VectorMatch{ID: r.ID, Score: cosine(vector, r.Values), Metadata: r.Metadata})
	}
	x.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (x *VectorIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.records)
}

func matchesFilter(meta, filter map[string]any) bool {
	for k, want := range filter {
		if meta[k] != want {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
