package services

import (
	"context"
	"iter"
	"strings"

	"github.com/rs/zerolog"

	"pms-assistant/internal/metrics"
	"pms-assistant/internal/models"
)

// DefaultTopK is the number of retrieved documents attached to a request.
const DefaultTopK = 3

const projectDataHeader = "=== Project Data ===\n"

// Retriever finds reference snippets relevant to a query. The returned
// sequence is lazy, finite and can be consumed once. Implementations log
// and yield nothing on failure.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) iter.Seq[string]
}

// ProjectDataProvider decides whether a message is about project data and,
// if so, returns a textual summary for the model. An empty string means the
// message is not project related.
type ProjectDataProvider interface {
	ProjectContext(ctx context.Context, message string) (string, error)
}

// NoopRetriever never returns documents.
type NoopRetriever struct{}

func (NoopRetriever) Search(context.Context, string, int) iter.Seq[string] {
	return func(func(string) bool) {}
}

// RequestAugmenter builds the outbound envelope from a context window,
// retrieved documents and optional project data. It performs no network
// calls itself; the retriever does.
type RequestAugmenter struct {
	retriever Retriever
	topK      int
}

func NewRequestAugmenter(retriever Retriever, topK int) *RequestAugmenter {
	if retriever == nil {
		retriever = NoopRetriever{}
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &RequestAugmenter{retriever: retriever, topK: topK}
}

func (a *RequestAugmenter) Augment(ctx context.Context, message string, window []*models.Message, projectData string) models.ChatRequestEnvelope {
	env := models.ChatRequestEnvelope{
		Message:         message,
		ContextMessages: ToContextMessages(window),
		RetrievedDocs:   make([]string, 0, a.topK+1),
	}

	if strings.TrimSpace(projectData) != "" {
		env.ProjectData = projectData
		env.RetrievedDocs = append(env.RetrievedDocs, projectDataHeader+projectData)
	}

	found := 0
	for doc := range a.retriever.Search(ctx, message, a.topK) {
		if strings.TrimSpace(doc) == "" {
			continue
		}
		env.RetrievedDocs = append(env.RetrievedDocs, doc)
		found++
		if found >= a.topK {
			break
		}
	}

	metrics.RetrievedDocuments.Observe(float64(found))
	zerolog.Ctx(ctx).Debug().
		Int("context_messages", len(env.ContextMessages)).
		Int("retrieved_docs", found).
		Bool("project_data", env.ProjectData != "").
		Msg("request augmented")

	return env
}

// ToContextMessages converts messages to lower-cased role/content pairs.
func ToContextMessages(msgs []*models.Message) []models.ContextMessage {
	out := make([]models.ContextMessage, len(msgs))
	for i, m := range msgs {
		out[i] = models.ContextMessage{
			Role:    strings.ToLower(string(m.Role)),
			Content: m.Content,
		}
	}
	return out
}
