// Package rag turns extracted document text into tenant-scoped vectors and
// finds the excerpts relevant to a question.
package rag

import "context"

// Payload keys written next to every indexed vector.
const (
	MetaText         = "text"
	MetaOwnerID      = "ownerId"
	MetaDocumentID   = "documentId"
	MetaDocumentName = "documentName"
)

const (
	DefaultChunkSize = 1000
	DefaultTopK      = 5
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorRecord struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

type VectorMatch struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// VectorIndex is a similarity index. Filter is an equality match on payload
// keys.
type VectorIndex interface {
	Upsert(ctx context.Context, records []VectorRecord) error
	Query(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]VectorMatch, error)
}

// DocumentRef identifies the document a batch of chunks came from.
type DocumentRef struct {
	ID      string
	OwnerID string
	Name    string
}

type Match struct {
	ChunkText    string  `json:"chunk_text"`
	DocumentName string  `json:"document_name"`
	Score        float64 `json:"score"`
}

func metaString(meta map[string]any, key string) string {
	s, _ := meta[key].(string)
	return s
}
