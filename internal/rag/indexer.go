package rag

import (
	"context"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"healthshield-ai/internal/platform/logger"
)

const tracerName = "healthshield-ai/internal/rag"

type Indexer struct {
	embedder    Embedder
	index       VectorIndex
	log         *logger.Logger
	concurrency int
	tracer      trace.Tracer
}

type IndexReport struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

func NewIndexer(log *logger.Logger, embedder Embedder, index VectorIndex, concurrency int) *Indexer {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Indexer{
		embedder:    embedder,
		index:       index,
		log:         log.With("service", "Indexer"),
		concurrency: concurrency,
		tracer:      otel.Tracer(tracerName),
	}
}

// Index embeds and upserts every non-blank chunk of doc. A failing chunk is
// logged and counted; the remaining chunks are still attempted. Upsert order
// across chunks is not guaranteed.
func (ix *Indexer) Index(ctx context.Context, doc DocumentRef, chunks []string) IndexReport {
	ctx, span := ix.tracer.Start(ctx, "rag.Index", trace.WithAttributes(
		attribute.String("document.id", doc.ID),
		attribute.Int("chunk.count", len(chunks)),
	))
	defer span.End()

	var indexed, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)

	for i, text := range chunks {
		if strings.TrimSpace(text) == "" {
			skipped.Add(1)
			continue
		}
		i, text := i, text
		g.Go(func() error {
			if err := ix.indexChunk(gctx, doc, i, text); err != nil {
				failed.Add(1)
				ix.log.Warn("index chunk failed",
					"document_id", doc.ID,
					"chunk", i,
					"error", err,
				)
				return nil
			}
			indexed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report := IndexReport{
		Indexed: int(indexed.Load()),
		Skipped: int(skipped.Load()),
		Failed:  int(failed.Load()),
	}
	span.SetAttributes(
		attribute.Int("chunk.indexed", report.Indexed),
		attribute.Int("chunk.failed", report.Failed),
	)
	ix.log.Info("document indexed",
		"document_id", doc.ID,
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report
}

func (ix *Indexer) indexChunk(ctx context.Context, doc DocumentRef, i int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	return ix.index.Upsert(ctx, []VectorRecord{{
		ID:     ChunkID(doc.ID, i),
		Values: vec,
		Metadata: map[string]any{
			MetaText:         text,
			MetaOwnerID:      doc.OwnerID,
			MetaDocumentID:   doc.ID,
			MetaDocumentName: doc.Name,
		},
	}})
}
