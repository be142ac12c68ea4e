// Package eval scores answers of the pipeline against fixed question and
// ground-truth pairs.
package eval

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Case is one question with the answers considered correct.
type Case struct {
	Question    string   `yaml:"question"`
	GroundTruth []string `yaml:"ground_truth"`
}

// DefaultCases are used when no case file is given.
var DefaultCases = []Case{
	{
		Question:    "What metrics should be used for evaluation?",
		GroundTruth: []string{"Retrieval accuracy, Retrieval precision, Contextual accuracy, Contextual precision"},
	},
	{
		Question:    "Which vector store is preferred?",
		GroundTruth: []string{"Weaviate"},
	},
	{
		Question:    "What is the preferred framework due to agentic capabilities?",
		GroundTruth: []string{"LangGraph or LangChain"},
	},
}

// LoadCases reads cases from a YAML list.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cases: %w", err)
	}
	var cases []Case
	if err := yaml.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parse cases: %w", err)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("no cases in %s", path)
	}
	return cases, nil
}

// Pipeline is the part of the RAG service the harness drives.
type Pipeline interface {
	Contexts(ctx context.Context, question string) ([]string, error)
	Answer(ctx context.Context, question string) (string, error)
}

// Embedder embeds texts for answer relevancy. Run skips that metric when nil.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Result is the scored outcome of one case.
type Result struct {
	Case
	Answer           string
	Contexts         []string
	ContextRecall    float64
	ContextPrecision float64
	AnswerRecall     float64
	Faithfulness     float64
	AnswerRelevancy  float64
}

// Run evaluates every case. A failing case is recorded with answer "Error"
// and no contexts, and the run continues.
func Run(ctx context.Context, p Pipeline, emb Embedder, cases []Case, log *zap.Logger) []Result {
	results := make([]Result, 0, len(cases))
	for _, c := range cases {
		log.Info("processing", zap.String("question", c.Question))
		r := Result{Case: c}
		contexts, err := p.Contexts(ctx, c.Question)
		if err == nil {
			r.Answer, err = p.Answer(ctx, c.Question)
		}
		if err != nil {
			log.Warn("case failed", zap.String("question", c.Question), zap.Error(err))
			r.Answer = "Error"
			contexts = nil
		}
		r.Contexts = contexts
		score(&r)
		if err == nil && emb != nil {
			if r.AnswerRelevancy, err = relevancy(ctx, emb, c.Question, r.Answer); err != nil {
				log.Warn("answer relevancy skipped", zap.String("question", c.Question), zap.Error(err))
			}
		}
		results = append(results, r)
	}
	return results
}

// Summary holds the mean of every metric over a run.
type Summary struct {
	ContextRecall    float64
	ContextPrecision float64
	AnswerRecall     float64
	Faithfulness     float64
	AnswerRelevancy  float64
}

func Summarize(results []Result) Summary {
	var s Summary
	if len(results) == 0 {
		return s
	}
	for _, r := range results {
		s.ContextRecall += r.ContextRecall
		s.ContextPrecision += r.ContextPrecision
		s.AnswerRecall += r.AnswerRecall
		s.Faithfulness += r.Faithfulness
		s.AnswerRelevancy += r.AnswerRelevancy
	}
	n := float64(len(results))
	return Summary{
		ContextRecall:    s.ContextRecall / n,
		ContextPrecision: s.ContextPrecision / n,
		AnswerRecall:     s.AnswerRecall / n,
		Faithfulness:     s.Faithfulness / n,
		AnswerRelevancy:  s.AnswerRelevancy / n,
	}
}

func score(r *Result) {
	truth := tokenSet(strings.Join(r.GroundTruth, " "))
	retrieved := tokenSet(strings.Join(r.Contexts, " "))
	r.ContextRecall = coverage(truth, retrieved)
	r.AnswerRecall = coverage(truth, tokenSet(r.Answer))
	// Share of answer tokens backed by the retrieved contexts.
	r.Faithfulness = coverage(tokenSet(r.Answer), retrieved)
	if len(r.Contexts) == 0 {
		return
	}
	relevant := 0
	for _, c := range r.Contexts {
		if coverage(truth, tokenSet(c)) > 0 {
			relevant++
		}
	}
	r.ContextPrecision = float64(relevant) / float64(len(r.Contexts))
}

// relevancy is the cosine similarity between the question and answer embeddings.
func relevancy(ctx context.Context, emb Embedder, question, answer string) (float64, error) {
	vecs, err := emb.Embed(ctx, []string{question, answer})
	if err != nil {
		return 0, err
	}
	if len(vecs) != 2 {
		return 0, fmt.Errorf("embed: got %d vectors, want 2", len(vecs))
	}
	return cosine(vecs[0], vecs[1]), nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// coverage is the share of truth tokens present in got.
func coverage(truth, got map[string]struct{}) float64 {
	if len(truth) == 0 {
		return 0
	}
	hit := 0
	for t := range truth {
		if _, ok := got[t]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(truth))
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "or": {}, "the": {}, "of": {}, "to": {}, "is": {}, "in": {},
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, skip := stopwords[f]; !skip {
			out[f] = struct{}{}
		}
	}
	return out
}
