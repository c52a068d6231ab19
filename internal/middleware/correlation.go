package middleware

import (
	"net/http"

	"github.com/rs/zerolog"

	"pms-assistant/internal/correlation"
)

// Correlation binds the inbound X-Correlation-ID, or a fresh one, to the
// request for its whole lifetime and echoes it on the response.
func Correlation(base zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := base.WithContext(r.Context())

			scope := correlation.Begin(ctx, r.Header.Get(correlation.HeaderName))
			defer scope.End()

			w.Header().Set(correlation.HeaderName, scope.ID())
			next.ServeHTTP(w, r.WithContext(scope.Context()))
		})
	}
}
