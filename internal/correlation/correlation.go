// Package correlation binds a per-request correlation id to a context so every
// log line and outbound call made on behalf of that request can carry it.
package correlation

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HeaderName is the HTTP header used to propagate the id in and out.
const HeaderName = "X-Correlation-ID"

type ctxKey struct{}

// Scope is the lifetime of one correlation binding. Callers must End it,
// normally with defer, on every exit path.
type Scope struct {
	ctx    context.Context
	id     string
	cancel context.CancelFunc
}

// Begin opens a scope for id, generating a fresh UUID when id is blank.
// The returned scope's context carries the id and a zerolog logger with a
// correlation_id field.
func Begin(ctx context.Context, id string) *Scope {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(ctx)
	ctx = context.WithValue(ctx, ctxKey{}, id)

	logger := zerolog.Ctx(ctx).With().Str("correlation_id", id).Logger()
	ctx = logger.WithContext(ctx)

	return &Scope{ctx: ctx, id: id, cancel: cancel}
}

// Context returns the request context bound to this scope.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// ID returns the bound correlation id.
func (s *Scope) ID() string {
	return s.id
}

// End releases the binding. Work still running under the scope's context is
// cancelled so nothing tagged with this id outlives the request.
func (s *Scope) End() {
	s.cancel()
}

// FromContext returns the correlation id bound to ctx, or "" outside a scope.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
