package rag

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Retriever struct {
	embedder Embedder
	index    VectorIndex
	topK     int
	tracer   trace.Tracer
}

func NewRetriever(embedder Embedder, index VectorIndex, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		topK:     topK,
		tracer:   otel.Tracer(tracerName),
	}
}

// Retrieve returns up to topK excerpts owned by ownerID, most similar first.
// The owner filter is sent to the index and applied again to what comes back,
// so a match from another tenant is never returned even if the index ignores
// the filter. No matches is not an error.
func (r *Retriever) Retrieve(ctx context.Context, ownerID, question string) ([]Match, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" || strings.TrimSpace(question) == "" {
		return nil, nil
	}

	ctx, span := r.tracer.Start(ctx, "rag.Retrieve", trace.WithAttributes(attribute.Int("top_k", r.topK)))
	defer span.End()

	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question failed: %w", err)
	}
	found, err := r.index.Query(ctx, vec, r.topK, map[string]any{MetaOwnerID: ownerID})
	if err != nil {
		return nil, fmt.Errorf("query vector index failed: %w", err)
	}

	matches := make([]Match, 0, len(found))
	for _, m := range found {
		if metaString(m.Metadata, MetaOwnerID) != ownerID {
			continue
		}
		matches = append(matches, Match{
			ChunkText:    metaString(m.Metadata, MetaText),
			DocumentName: metaString(m.Metadata, MetaDocumentName),
			Score:        m.Score,
		})
		if len(matches) == r.topK {
			break
		}
	}
	span.SetAttributes(attribute.Int("match.count", len(matches)))
	return matches, nil
}
