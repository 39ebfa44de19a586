package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthshield-ai/internal/model"
	"healthshield-ai/internal/rag"
)

func TestBlobStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewBlobStore()
	data := []byte("%PDF-1.4")
	require.NoError(t, s.Put(ctx, "u1/d1-a.pdf", data, model.MimePDF))
	data[0] = 'X'

	got, err := s.Get(ctx, "u1/d1-a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), got)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, "u1/d1-a.pdf"))
	require.NoError(t, s.Delete(ctx, "u1/d1-a.pdf"))
	_, err = s.Get(ctx, "u1/d1-a.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestDocumentStoreOwnerScoping(t *testing.T) {
	ctx := context.Background()
	s := NewDocumentStore()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Create(ctx, &model.Document{ID: "a", OwnerID: "u1", UploadedAt: base}))
	require.NoError(t, s.Create(ctx, &model.Document{ID: "b", OwnerID: "u1", UploadedAt: base.Add(time.Minute)}))
	require.NoError(t, s.Create(ctx, &model.Document{ID: "c", OwnerID: "u2", UploadedAt: base}))
	assert.Error(t, s.Create(ctx, &model.Document{ID: "a", OwnerID: "u1"}))

	list, err := s.ListByOwnerID(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)

	scoped, err := s.ListByIDsAndOwnerID(ctx, []string{"a", "c", "zzz"}, "u1")
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "a", scoped[0].ID)
}

func TestVectorIndexFilterAndRanking(t *testing.T) {
	ctx := context.Background()
	x := NewVectorIndex()
	require.NoError(t, x.Upsert(ctx, []rag.VectorRecord{
		{ID: "d1_0", Values: []float32{1, 0}, Metadata: map[string]any{rag.MetaOwnerID: "u1"}},
		{ID: "d1_1", Values: []float32{0.6, 0.8}, Metadata: map[string]any{rag.MetaOwnerID: "u1"}},
		{ID: "d2_0", Values: []float32{1, 0}, Metadata: map[string]any{rag.MetaOwnerID: "u2"}},
	}))

	got, err := x.Query(ctx, []float32{1, 0}, 5, map[string]any{rag.MetaOwnerID: "u1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "d1_0", got[0].ID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
	assert.Equal(t, "d1_1", got[1].ID)

	top1, err := x.Query(ctx, []float32{1, 0}, 1, nil)
	require.NoError(t, err)
	assert.Len(t, top1, 1)
}

func TestVectorIndexUpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	x := NewVectorIndex()
	require.NoError(t, x.Upsert(ctx, []rag.VectorRecord{{ID: "d1_0", Values: []float32{1}}}))
	require.NoError(t, x.Upsert(ctx, []rag.VectorRecord{{ID: "d1_0", Values: []float32{2}}}))
	assert.Equal(t, 1, x.Len())
	assert.Error(t, x.Upsert(ctx, []rag.VectorRecord{{ID: "", Values: []float32{1}}}))
}
