package retrieval

import (
	"context"
	"fmt"
	"iter"

	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"
)

// Embedder turns a query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// pointQuerier is the part of *qdrant.Client the retriever uses.
type pointQuerier interface {
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

// QdrantRetriever runs a vector search over a collection whose points carry
// the document text in a "content" payload field.
type QdrantRetriever struct {
	points     pointQuerier
	embedder   Embedder
	collection string
}

// NewQdrantClient connects to Qdrant over gRPC.
func NewQdrantClient(host string, port int) (*qdrant.Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}
	return client, nil
}

func NewQdrantRetriever(points pointQuerier, embedder Embedder, collection string) *QdrantRetriever {
	return &QdrantRetriever{points: points, embedder: embedder, collection: collection}
}

func (r *QdrantRetriever) Search(ctx context.Context, query string, topK int) iter.Seq[string] {
	return deferred(func() []string {
		docs, err := r.search(ctx, query, topK)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("collection", r.collection).Msg("vector search failed, continuing without documents")
			return nil
		}
		return docs
	})
}

func (r *QdrantRetriever) search(ctx context.Context, query string, topK int) ([]string, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	limit := uint64(topK)
	hits, err := r.points.Query(ctx, &qdrant.QueryPoints{
		CollectionName: r.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query qdrant: %w", err)
	}

	docs := make([]string, 0, len(hits))
	for _, hit := range hits {
		if val, ok := hit.GetPayload()["content"]; ok {
			if text := val.GetStringValue(); text != "" {
				docs = append(docs, text)
			}
		}
	}
	return docs, nil
}
