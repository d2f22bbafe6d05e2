package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lakeshift/lakeshift/internal/engine"
	"github.com/lakeshift/lakeshift/internal/interfaces"
)

type contextKey string

// engineContextKey carries the resolved engine identifier through the request
const engineContextKey contextKey = "lakeshift.engine"

// EngineFromContext returns the engine identifier resolved by EngineResolver,
// or "" when none is attached.
func EngineFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(engineContextKey).(string); ok {
		return name
	}
	return ""
}

// WithEngine attaches an engine identifier to the context; exported for tests
func WithEngine(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, engineContextKey, name)
}

// EngineResolver is the boundary guard in front of deployment creation: it
// resolves the transformation engine from the request (header, then query
// parameter, then body field) and attaches it to the context. A request that
// resolves to no available engine is rejected with a machine-readable 400
// before any work is queued.
func EngineResolver(factory *engine.Factory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			meta := &engine.SelectionMetadata{
				Header: r.Header.Get(interfaces.EngineHeader),
				Query:  r.URL.Query().Get("engine"),
			}

			if isModifyingRequest(r) && r.ContentLength != 0 {
				body, err := parseAndRestoreBody(r)
				if err != nil {
					writeValidationError(w, err.Error(), "body")
					return
				}
				if bodyEngine, ok := body["engine"].(string); ok {
					meta.Body = bodyEngine
				}
			}

			name, err := factory.ResolveName("", meta)
			if err != nil {
				writeEngineError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithEngine(r.Context(), name)))
		})
	}
}

// writeEngineError maps engine resolution failures to a 400 with a
// machine-readable reason.
func writeEngineError(w http.ResponseWriter, err error) {
	reason := "engine_not_available"
	if errors.Is(err, engine.ErrNoEngineResolved) {
		reason = "engine_unresolved"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	response := map[string]string{
		"error":   reason,
		"message": err.Error(),
	}
	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		_ = encodeErr
	}
}
