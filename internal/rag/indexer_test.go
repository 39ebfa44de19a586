package rag_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthshield-ai/internal/memstore"
	"healthshield-ai/internal/platform/logger"
	"healthshield-ai/internal/rag"
	"healthshield-ai/internal/rag/ragtest"
)

type failingIndex struct {
	mu       sync.Mutex
	upserted []rag.VectorRecord
	failIDs  map[string]bool
}

func (f *failingIndex) Upsert(_ context.Context, records []rag.VectorRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range records {
		if f.failIDs[r.ID] {
			return errors.New("upsert rejected")
		}
	}
	f.upserted = append(f.upserted, records...)
	return nil
}

func (f *failingIndex) Query(context.Context, []float32, int, map[string]any) ([]rag.VectorMatch, error) {
	return nil, nil
}

func TestIndexerWritesChunkMetadata(t *testing.T) {
	index := memstore.NewVectorIndex()
	ix := rag.NewIndexer(logger.Nop(), ragtest.NewHashEmbedder(32), index, 4)
	doc := rag.DocumentRef{ID: "d1", OwnerID: "u1", Name: "policy.pdf"}

	report := ix.Index(context.Background(), doc, []string{"room rent", "   ", "co-pay 10%"})
	assert.Equal(t, rag.IndexReport{Indexed: 2, Skipped: 1}, report)
	assert.Equal(t, 2, index.Len())

	matches, err := index.Query(context.Background(), mustEmbed(t, "co-pay 10%"), 1, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "d1_2", matches[0].ID)
	assert.Equal(t, map[string]any{
		rag.MetaText:         "co-pay 10%",
		rag.MetaOwnerID:      "u1",
		rag.MetaDocumentID:   "d1",
		rag.MetaDocumentName: "policy.pdf",
	}, matches[0].Metadata)
}

func TestIndexerContinuesPastFailures(t *testing.T) {
	embedder := ragtest.NewHashEmbedder(16)
	embedder.FailOn = "broken"
	index := &failingIndex{failIDs: map[string]bool{"d1_3": true}}
	ix := rag.NewIndexer(logger.Nop(), embedder, index, 2)

	report := ix.Index(context.Background(), rag.DocumentRef{ID: "d1", OwnerID: "u1"},
		[]string{"alpha", "broken chunk", "gamma", "delta"})
	assert.Equal(t, 2, report.Indexed)
	assert.Equal(t, 2, report.Failed)

	ids := make([]string, 0, len(index.upserted))
	for _, r := range index.upserted {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{"d1_0", "d1_2"}, ids)
}

func TestIndexerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	index := memstore.NewVectorIndex()
	ix := rag.NewIndexer(logger.Nop(), ragtest.NewHashEmbedder(8), index, 1)

	report := ix.Index(ctx, rag.DocumentRef{ID: "d1", OwnerID: "u1"}, []string{"a", "b"})
	assert.Equal(t, 0, report.Indexed)
	assert.Equal(t, 0, index.Len())
}

func mustEmbed(t *testing.T, text string) []float32 {
	t.Helper()
	vec, err := ragtest.NewHashEmbedder(32).Embed(context.Background(), text)
	require.NoError(t, err)
	return vec
}
