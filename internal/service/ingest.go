package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/katakuxiko/docqa/internal/model"
	"github.com/katakuxiko/docqa/internal/store"
)

// DocumentLoader extracts chunks from a document on disk.
type DocumentLoader interface {
	Load(ctx context.Context, path string) ([]model.Chunk, error)
}

// nonIndexableKeys hold nested layout data the index cannot store.
var nonIndexableKeys = []string{"coordinates", "points"}

// SanitizeMetadata returns a copy of md without the non-indexable keys.
func SanitizeMetadata(md map[string]any) map[string]any {
	if md == nil {
		return nil
	}
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	for _, k := range nonIndexableKeys {
		delete(out, k)
	}
	return out
}

// Ingestor loads documents, embeds their chunks and writes them to the index.
type Ingestor struct {
	loader   DocumentLoader
	embedder Embedder
	open     store.Opener
	log      *zap.Logger
}

func NewIngestor(loader DocumentLoader, embedder Embedder, open store.Opener, log *zap.Logger) *Ingestor {
	return &Ingestor{loader: loader, embedder: embedder, open: open, log: log}
}

// Ingest stores every chunk of the document at path and returns how many were written.
// A failure during insertion may leave part of the batch persisted.
func (i *Ingestor) Ingest(ctx context.Context, path string) (int, error) {
	i.log.Info("ingesting", zap.String("path", path))

	chunks, err := i.loader.Load(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", path, err)
	}
	for k := range chunks {
		chunks[k].Metadata = SanitizeMetadata(chunks[k].Metadata)
	}

	idx, err := i.open(ctx)
	if err != nil {
		return 0, fmt.Errorf("open index: %w", err)
	}
	defer func() {
		if err := idx.Close(); err != nil {
			i.log.Warn("close index", zap.Error(err))
		}
	}()

	texts := make([]string, len(chunks))
	for k, c := range chunks {
		texts[k] = c.Text
	}
	vectors, err := i.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if err := idx.Add(ctx, chunks, vectors); err != nil {
		return 0, fmt.Errorf("insert chunks: %w", err)
	}

	i.log.Info("ingested", zap.String("path", path), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}
