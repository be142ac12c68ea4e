package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/grpc"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/katakuxiko/docqa/internal/config"
	"github.com/katakuxiko/docqa/internal/model"
)

// WeaviateStore stores chunks as objects of one Weaviate class, with vectors
// supplied by the caller.
type WeaviateStore struct {
	client  *weaviate.Client
	class   string
	textKey string
}

// NewWeaviateStore connects to Weaviate and creates the class when it is missing.
func NewWeaviateStore(ctx context.Context, cfg config.IndexConfig) (*WeaviateStore, error) {
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   cfg.HTTPAddr(),
		Scheme: cfg.Scheme,
		GrpcConfig: &grpc.Config{
			Host:    cfg.GRPCAddr(),
			Secured: cfg.Scheme == "https",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect weaviate: %w", err)
	}
	s := &WeaviateStore{client: client, class: cfg.Class, textKey: cfg.TextKey}
	if err := s.ensureClass(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *WeaviateStore) ensureClass(ctx context.Context) error {
	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(s.class).Do(ctx)
	if err != nil {
		return fmt.Errorf("check class %s: %w", s.class, err)
	}
	if exists {
		return nil
	}
	class := &models.Class{
		Class:      s.class,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: s.textKey, DataType: []string{"text"}},
		},
	}
	if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("create class %s: %w", s.class, err)
	}
	return nil
}

func (s *WeaviateStore) Add(ctx context.Context, chunks []model.Chunk, vectors [][]float32) error {
	if err := checkBatch(chunks, vectors); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	objects := make([]*models.Object, len(chunks))
	for i, c := range chunks {
		objects[i] = &models.Object{
			Class:      s.class,
			Properties: s.properties(c),
			Vector:     vectors[i],
		}
	}
	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("batch insert: %w", err)
	}
	var errs []error
	for i, r := range resp {
		if r.Result == nil || r.Result.Errors == nil {
			continue
		}
		for _, e := range r.Result.Errors.Error {
			errs = append(errs, fmt.Errorf("object %d: %s", i, e.Message))
		}
	}
	return errors.Join(errs...)
}

func (s *WeaviateStore) properties(c model.Chunk) map[string]any {
	props := make(map[string]any, len(c.Metadata)+1)
	for k, v := range c.Metadata {
		props[k] = v
	}
	props[s.textKey] = c.Text
	return props
}

func (s *WeaviateStore) Search(ctx context.Context, vector []float32, k int) ([]model.Chunk, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	resp, err := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithFields(
			graphql.Field{Name: s.textKey},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "distance"}}},
		).
		WithNearVector(nearVector).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("near vector search: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("near vector search: %s", resp.Errors[0].Message)
	}
	return decodeHits(resp.Data, s.class, s.textKey), nil
}

// decodeHits reads Get.<class>[] from a GraphQL response body.
func decodeHits(data map[string]models.JSONObject, class, textKey string) []model.Chunk {
	get, _ := data["Get"].(map[string]any)
	items, _ := get[class].([]any)
	out := make([]model.Chunk, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		c := model.Chunk{}
		c.Text, _ = obj[textKey].(string)
		if add, ok := obj["_additional"].(map[string]any); ok {
			c.ID, _ = add["id"].(string)
			if d, ok := add["distance"].(float64); ok {
				c.Metadata = map[string]any{"distance": d}
			}
		}
		out = append(out, c)
	}
	return out
}

// Close is a no-op: the client keeps no connection that outlives a request.
func (s *WeaviateStore) Close() error {
	return nil
}
