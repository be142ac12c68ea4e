// Package store provides the vector index backends chunks are written to and
// retrieved from.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/katakuxiko/docqa/internal/config"
	"github.com/katakuxiko/docqa/internal/model"
)

// ErrUnknownBackend is returned by Open for an unsupported index backend.
var ErrUnknownBackend = errors.New("unknown index backend")

// Index is an open connection to the vector index.
type Index interface {
	// Add inserts chunks with their vectors as a single batch.
	Add(ctx context.Context, chunks []model.Chunk, vectors [][]float32) error
	// Search returns up to k chunks nearest to vector, most similar first.
	Search(ctx context.Context, vector []float32, k int) ([]model.Chunk, error)
	Close() error
}

// Opener acquires a fresh Index connection. The caller owns it and must Close it.
type Opener func(ctx context.Context) (Index, error)

// NewOpener returns an Opener for the configured backend.
func NewOpener(cfg config.IndexConfig) (Opener, error) {
	switch cfg.Backend {
	case config.BackendWeaviate:
		return func(ctx context.Context) (Index, error) {
			return NewWeaviateStore(ctx, cfg)
		}, nil
	case config.BackendPgvector:
		return func(ctx context.Context) (Index, error) {
			return NewPgStore(ctx, cfg.PgConn, cfg.Class)
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

func checkBatch(chunks []model.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	return nil
}
