package services

import (
	"context"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pms-assistant/internal/models"
)

type stubRetriever struct {
	docs      []string
	gotQuery  string
	gotTopK   int
	yieldedTo int
}

func (s *stubRetriever) Search(ctx context.Context, query string, topK int) iter.Seq[string] {
	s.gotQuery = query
	s.gotTopK = topK
	return func(yield func(string) bool) {
		for _, d := range s.docs {
			s.yieldedTo++
			if !yield(d) {
				return
			}
		}
	}
}

func TestRequestAugmenter_Augment(t *testing.T) {
	r := &stubRetriever{docs: []string{"doc A", "doc B"}}
	a := NewRequestAugmenter(r, 3)

	window := makeHistory(3)
	env := a.Augment(context.Background(), "where is the design doc?", window, "")

	assert.Equal(t, "where is the design doc?", env.Message)
	assert.Equal(t, "where is the design doc?", r.gotQuery)
	assert.Equal(t, 3, r.gotTopK)
	assert.Equal(t, []string{"doc A", "doc B"}, env.RetrievedDocs)
	assert.Empty(t, env.ProjectData)

	require.Len(t, env.ContextMessages, 3)
	assert.Equal(t, models.ContextMessage{Role: "user", Content: "message 0"}, env.ContextMessages[0])
	assert.Equal(t, models.ContextMessage{Role: "assistant", Content: "message 1"}, env.ContextMessages[1])
	assert.Equal(t, "user", env.ContextMessages[2].Role)
}

func TestRequestAugmenter_ProjectDataPrepended(t *testing.T) {
	a := NewRequestAugmenter(&stubRetriever{docs: []string{"doc A"}}, 3)

	env := a.Augment(context.Background(), "project status?", nil, "Project: Claims Portal")

	require.Len(t, env.RetrievedDocs, 2)
	assert.Equal(t, "=== Project Data ===\nProject: Claims Portal", env.RetrievedDocs[0])
	assert.Equal(t, "doc A", env.RetrievedDocs[1])
	assert.Equal(t, "Project: Claims Portal", env.ProjectData)
}

func TestRequestAugmenter_StopsAtTopK(t *testing.T) {
	r := &stubRetriever{docs: []string{"1", "", "2", "3", "4", "5"}}
	a := NewRequestAugmenter(r, 3)

	env := a.Augment(context.Background(), "q", nil, "")

	assert.Equal(t, []string{"1", "2", "3"}, env.RetrievedDocs)
	assert.Equal(t, 4, r.yieldedTo)
}

func TestRequestAugmenter_Defaults(t *testing.T) {
	a := NewRequestAugmenter(nil, 0)
	env := a.Augment(context.Background(), "hi", nil, "  ")

	assert.NotNil(t, env.RetrievedDocs)
	assert.Empty(t, env.RetrievedDocs)
	assert.NotNil(t, env.ContextMessages)
	assert.Empty(t, env.ProjectData)
}
