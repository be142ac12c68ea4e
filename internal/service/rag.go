package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/katakuxiko/docqa/internal/config"
	"github.com/katakuxiko/docqa/internal/store"
)

// LanguageModel generates text for a prompt.
type LanguageModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// RAGService answers questions by decomposing them, retrieving context for
// every sub-question and synthesizing an answer.
type RAGService struct {
	llm       LanguageModel
	retriever *Retriever
	open      store.Opener
	parse     DecompositionParser
	log       *zap.Logger
}

func NewRAGService(cfg *config.Config, llm LanguageModel, embedder Embedder, open store.Opener, log *zap.Logger) *RAGService {
	parse := ParseLenient
	if cfg.Decomposition.Strict {
		parse = ParseStrict
	}
	return &RAGService{
		llm:       llm,
		retriever: NewRetriever(embedder, cfg.Index.TopK, cfg.Retrieval.Concurrency, log),
		open:      open,
		parse:     parse,
		log:       log,
	}
}

// Decompose asks the model to split question into retrieval-oriented sub-questions.
func (s *RAGService) Decompose(ctx context.Context, question string) ([]string, error) {
	prompt, err := render(decompositionPrompt, promptVars{Question: question})
	if err != nil {
		return nil, err
	}
	raw, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("decompose: %w", err)
	}
	return s.parse(raw)
}

// Synthesize asks the model to answer question from the aggregated context.
// The reply is returned unmodified.
func (s *RAGService) Synthesize(ctx context.Context, aggregated, question string) (string, error) {
	prompt, err := render(synthesisPrompt, promptVars{Question: question, Context: aggregated})
	if err != nil {
		return "", err
	}
	answer, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("synthesize: %w", err)
	}
	return answer, nil
}

// Answer runs the full decompose, retrieve and synthesize chain.
func (s *RAGService) Answer(ctx context.Context, question string) (string, error) {
	subQuestions, err := s.Decompose(ctx, question)
	if err != nil {
		return "", err
	}
	s.log.Info("decomposed question", zap.Strings("sub_questions", subQuestions))

	aggregated, err := s.aggregate(ctx, subQuestions)
	if err != nil {
		return "", err
	}
	s.log.Debug("aggregated context", zap.Int("bytes", len(aggregated)))
	return s.Synthesize(ctx, aggregated, question)
}

func (s *RAGService) aggregate(ctx context.Context, subQuestions []string) (string, error) {
	idx, err := s.open(ctx)
	if err != nil {
		return "", fmt.Errorf("open index: %w", err)
	}
	defer s.closeIndex(idx)
	return s.retriever.Aggregate(ctx, idx, subQuestions)
}

// Contexts returns the texts retrieved for question itself, without decomposition.
func (s *RAGService) Contexts(ctx context.Context, question string) ([]string, error) {
	idx, err := s.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer s.closeIndex(idx)
	chunks, err := s.retriever.Retrieve(ctx, idx, question)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out, nil
}

func (s *RAGService) closeIndex(idx store.Index) {
	if err := idx.Close(); err != nil {
		s.log.Warn("close index", zap.Error(err))
	}
}
