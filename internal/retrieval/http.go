package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"pms-assistant/internal/correlation"
)

const searchPath = "/api/documents/search"

// HTTPRetriever queries the LLM service's document search endpoint.
type HTTPRetriever struct {
	client *resty.Client
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchResponse struct {
	Results []json.RawMessage `json:"results"`
}

func NewHTTPRetriever(baseURL string, timeout time.Duration) *HTTPRetriever {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &HTTPRetriever{client: client}
}

func (r *HTTPRetriever) Search(ctx context.Context, query string, topK int) iter.Seq[string] {
	return deferred(func() []string {
		docs, err := r.search(ctx, query, topK)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("document search failed, continuing without documents")
			return nil
		}
		return docs
	})
}

func (r *HTTPRetriever) search(ctx context.Context, query string, topK int) ([]string, error) {
	var out searchResponse
	req := r.client.R().
		SetContext(ctx).
		SetBody(searchRequest{Query: query, TopK: topK}).
		SetResult(&out)
	if id := correlation.FromContext(ctx); id != "" {
		req.SetHeader(correlation.HeaderName, id)
	}

	resp, err := req.Post(searchPath)
	if err != nil {
		return nil, fmt.Errorf("document search request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("document search returned HTTP %d", resp.StatusCode())
	}

	docs := make([]string, 0, len(out.Results))
	for _, raw := range out.Results {
		if doc, ok := resultContent(raw); ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// resultContent accepts either a bare string or an object with a content field.
func resultContent(raw json.RawMessage) (string, bool) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, true
	}

	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Content != "" {
		return obj.Content, true
	}
	return "", false
}
