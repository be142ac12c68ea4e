package service

import (
	"context"
	"sync"

	"github.com/katakuxiko/docqa/internal/model"
	"github.com/katakuxiko/docqa/internal/store"
)

// fakeLLM replies from a queue and records every prompt it receives.
type fakeLLM struct {
	mu      sync.Mutex
	replies []string
	err     error
	prompts []string
}

func (f *fakeLLM) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

// fakeEmbedder maps each known text to a one-dimensional vector holding its id.
type fakeEmbedder struct {
	mu    sync.Mutex
	ids   map[string]float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{f.ids[t]}
	}
	return out, nil
}

// fakeIndex serves canned hits keyed by the first vector component.
type fakeIndex struct {
	mu        sync.Mutex
	hits      map[float32][]model.Chunk
	searchErr error
	addErr    error
	searches  int
	lastK     int
	added     []model.Chunk
	vectors   [][]float32
	closed    int
}

func (f *fakeIndex) Add(_ context.Context, chunks []model.Chunk, vectors [][]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, chunks...)
	f.vectors = append(f.vectors, vectors...)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, vector []float32, k int) ([]model.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	f.lastK = k
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits[vector[0]], nil
}

func (f *fakeIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func openerFor(idx *fakeIndex) store.Opener {
	return func(context.Context) (store.Index, error) { return idx, nil }
}

func chunks(texts ...string) []model.Chunk {
	out := make([]model.Chunk, len(texts))
	for i, t := range texts {
		out[i] = model.Chunk{Text: t}
	}
	return out
}
