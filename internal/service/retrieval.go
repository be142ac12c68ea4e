package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/katakuxiko/docqa/internal/model"
	"github.com/katakuxiko/docqa/internal/store"
	"github.com/katakuxiko/docqa/internal/util"
)

// Embedder converts text into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever runs sub-questions against an open index and aggregates the hits.
type Retriever struct {
	embedder    Embedder
	topK        int
	concurrency int
	log         *zap.Logger
}

func NewRetriever(embedder Embedder, topK, concurrency int, log *zap.Logger) *Retriever {
	return &Retriever{embedder: embedder, topK: topK, concurrency: concurrency, log: log}
}

// Retrieve returns the top-k chunks for one query, in index rank order.
func (r *Retriever) Retrieve(ctx context.Context, idx store.Index, query string) ([]model.Chunk, error) {
	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: expected 1 vector, got %d", len(vecs))
	}
	chunks, err := idx.Search(ctx, vecs[0], r.topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	r.log.Debug("retrieved",
		zap.String("query", util.TruncateRunes(query, 80)),
		zap.Int("chunks", len(chunks)))
	return chunks, nil
}

// Aggregate retrieves every sub-question and concatenates the chunk texts,
// each followed by a blank line, in sub-question order then rank order.
// Duplicates are kept. The first failing sub-question aborts the whole call.
func (r *Retriever) Aggregate(ctx context.Context, idx store.Index, subQuestions []string) (string, error) {
	results := make([][]model.Chunk, len(subQuestions))
	if r.concurrency <= 1 {
		for i, q := range subQuestions {
			chunks, err := r.Retrieve(ctx, idx, q)
			if err != nil {
				return "", err
			}
			results[i] = chunks
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.concurrency)
		for i, q := range subQuestions {
			i, q := i, q
			g.Go(func() error {
				chunks, err := r.Retrieve(gctx, idx, q)
				if err != nil {
					return err
				}
				results[i] = chunks
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return "", err
		}
	}
	return joinContext(results), nil
}

func joinContext(results [][]model.Chunk) string {
	var sb strings.Builder
	for _, chunks := range results {
		for _, c := range chunks {
			sb.WriteString(c.Text)
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}
