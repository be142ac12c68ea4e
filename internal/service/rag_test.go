package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/katakuxiko/docqa/internal/config"
	"github.com/katakuxiko/docqa/internal/store"
)

func newTestService(cfg *config.Config, llm *fakeLLM) (*RAGService, *fakeIndex) {
	emb, idx := retrievalFixture()
	return NewRAGService(cfg, llm, emb, openerFor(idx), zap.NewNop()), idx
}

func TestAnswer(t *testing.T) {
	llm := &fakeLLM{replies: []string{"q1\nq2", "  final answer\n"}}
	svc, idx := newTestService(config.Default(), llm)

	answer, err := svc.Answer(context.Background(), "What are the evaluation metrics?")
	require.NoError(t, err)
	assert.Equal(t, "  final answer\n", answer)
	assert.Equal(t, 2, idx.searches)
	assert.Equal(t, 1, idx.closed)

	require.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[0], "Original question: What are the evaluation metrics?")
	assert.Contains(t, llm.prompts[1], "alpha\n\nshared\n\nshared\n\nbeta\n\ngamma\n\n")
	assert.Contains(t, llm.prompts[1], "using the context provided: What are the evaluation metrics?")
}

func TestAnswer_TrailingEmptySubQuestionIsRetrieved(t *testing.T) {
	llm := &fakeLLM{replies: []string{"q1\nq2\n", "ok"}}
	svc, idx := newTestService(config.Default(), llm)

	_, err := svc.Answer(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, 3, idx.searches)
}

func TestAnswer_StrictDecomposition(t *testing.T) {
	cfg := config.Default()
	cfg.Decomposition.Strict = true

	llm := &fakeLLM{replies: []string{"Sure! Here you go:\nq1?"}}
	svc, idx := newTestService(cfg, llm)

	_, err := svc.Answer(context.Background(), "question")
	assert.ErrorIs(t, err, ErrMalformedDecomposition)
	assert.Zero(t, idx.searches)
}

func TestAnswer_Errors(t *testing.T) {
	llmErr := errors.New("connection refused")
	svc, idx := newTestService(config.Default(), &fakeLLM{err: llmErr})
	_, err := svc.Answer(context.Background(), "question")
	assert.ErrorIs(t, err, llmErr)
	assert.Zero(t, idx.searches)

	searchErr := errors.New("weaviate down")
	svc, idx = newTestService(config.Default(), &fakeLLM{replies: []string{"q1\nq2"}})
	idx.searchErr = searchErr
	_, err = svc.Answer(context.Background(), "question")
	assert.ErrorIs(t, err, searchErr)
	assert.Equal(t, 1, idx.closed)

	openErr := errors.New("dial tcp: refused")
	svc = NewRAGService(config.Default(), &fakeLLM{replies: []string{"q1"}}, &fakeEmbedder{},
		func(context.Context) (store.Index, error) { return nil, openErr }, zap.NewNop())
	_, err = svc.Answer(context.Background(), "question")
	assert.ErrorIs(t, err, openErr)
}

func TestDecompose_PromptCarriesQuestion(t *testing.T) {
	llm := &fakeLLM{replies: []string{"What metrics?\nWhich vector store?\n"}}
	svc, _ := newTestService(config.Default(), llm)

	subs, err := svc.Decompose(context.Background(), "Tell me about evaluation")
	require.NoError(t, err)
	assert.Equal(t, []string{"What metrics?", "Which vector store?", ""}, subs)
	assert.Contains(t, llm.prompts[0], "Output strictly a list of questions separated by newlines.")
}

func TestContexts(t *testing.T) {
	svc, idx := newTestService(config.Default(), &fakeLLM{})

	got, err := svc.Contexts(context.Background(), "q1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "shared"}, got)
	assert.Equal(t, 1, idx.closed)
}
