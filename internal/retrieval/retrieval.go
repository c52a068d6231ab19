// Package retrieval provides the Document Retriever backends used to ground
// chat requests: the LLM service's search endpoint, a Qdrant collection, or
// nothing at all.
package retrieval

import (
	"iter"
	"strings"
	"sync/atomic"
)

// deferred returns a sequence that runs fetch on first iteration only. Later
// iterations yield nothing.
func deferred(fetch func() []string) iter.Seq[string] {
	var used atomic.Bool
	return func(yield func(string) bool) {
		if used.Swap(true) {
			return
		}
		for _, doc := range fetch() {
			if strings.TrimSpace(doc) == "" {
				continue
			}
			if !yield(doc) {
				return
			}
		}
	}
}
