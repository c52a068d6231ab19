package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestHTTPRetriever_Search(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, searchPath, r.URL.Path)

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sprint risks", req.Query)
		assert.Equal(t, 3, req.TopK)

		writeJSON(w, http.StatusOK, map[string]any{
			"query": req.Query,
			"results": []any{
				map[string]any{"content": "Risk register", "score": 0.9},
				"plain snippet",
				map[string]any{"content": ""},
				map[string]any{"content": "Sprint 4 retro"},
			},
		})
	}))
	defer srv.Close()

	r := NewHTTPRetriever(srv.URL, time.Second)
	seq := r.Search(context.Background(), "sprint risks", 3)

	assert.Zero(t, calls.Load(), "search must not run before iteration")

	assert.Equal(t, []string{"Risk register", "plain snippet", "Sprint 4 retro"}, slices.Collect(seq))
	assert.Empty(t, slices.Collect(seq), "sequence is single use")
	assert.EqualValues(t, 1, calls.Load())
}

func TestHTTPRetriever_FailureYieldsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "RAG service not available"})
	}))
	defer srv.Close()

	r := NewHTTPRetriever(srv.URL, time.Second)
	assert.Empty(t, slices.Collect(r.Search(context.Background(), "q", 3)))
}

func TestHTTPRetriever_Unreachable(t *testing.T) {
	r := NewHTTPRetriever("http://127.0.0.1:1", 200*time.Millisecond)
	assert.Empty(t, slices.Collect(r.Search(context.Background(), "q", 3)))
}

func TestDeferred_EarlyStop(t *testing.T) {
	seq := deferred(func() []string { return []string{"a", " ", "b", "c"} })

	var got []string
	for doc := range seq {
		got = append(got, doc)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestBuildEmbeddingURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://embed:8080", "http://embed:8080/v1/embeddings"},
		{"http://embed:8080/v1", "http://embed:8080/v1/embeddings"},
		{"http://embed:8080/v1/embeddings", "http://embed:8080/v1/embeddings"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, buildEmbeddingURL(tt.in))
	}
}

func TestEmbeddingClient_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Equal(t, []string{"hello"}, req.Input)

		writeJSON(w, http.StatusOK, map[string]any{
			"data": []any{map[string]any{"embedding": []float32{0.1, 0.2, 0.3}, "index": 0}},
		})
	}))
	defer srv.Close()

	c := NewEmbeddingClient(srv.URL, "secret", "text-embedding-3-small", time.Second)
	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbeddingClient_EmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{}})
	}))
	defer srv.Close()

	_, err := NewEmbeddingClient(srv.URL, "", "m", time.Second).Embed(context.Background(), "x")
	assert.Error(t, err)
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f fakeEmbedder) Embed(context.Context, string) ([]float32, error) { return f.vec, f.err }

type fakeQuerier struct {
	req  *qdrant.QueryPoints
	hits []*qdrant.ScoredPoint
	err  error
}

func (f *fakeQuerier) Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.req = req
	return f.hits, f.err
}

func TestQdrantRetriever_Search(t *testing.T) {
	q := &fakeQuerier{hits: []*qdrant.ScoredPoint{
		{Payload: map[string]*qdrant.Value{"content": qdrant.NewValueString("Charter v2")}, Score: 0.8},
		{Payload: map[string]*qdrant.Value{"title": qdrant.NewValueString("no content")}},
		{Payload: map[string]*qdrant.Value{"content": qdrant.NewValueString("WBS baseline")}, Score: 0.7},
	}}
	r := NewQdrantRetriever(q, fakeEmbedder{vec: []float32{1, 0}}, "pms_documents")

	docs := slices.Collect(r.Search(context.Background(), "charter", 3))

	assert.Equal(t, []string{"Charter v2", "WBS baseline"}, docs)
	require.NotNil(t, q.req)
	assert.Equal(t, "pms_documents", q.req.CollectionName)
	assert.EqualValues(t, 3, q.req.GetLimit())
}

func TestQdrantRetriever_Failures(t *testing.T) {
	embedFail := NewQdrantRetriever(&fakeQuerier{}, fakeEmbedder{err: errors.New("down")}, "c")
	assert.Empty(t, slices.Collect(embedFail.Search(context.Background(), "q", 3)))

	queryFail := NewQdrantRetriever(&fakeQuerier{err: errors.New("unavailable")}, fakeEmbedder{vec: []float32{1}}, "c")
	assert.Empty(t, slices.Collect(queryFail.Search(context.Background(), "q", 3)))
}
