package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// contextKey is an unexported type for context keys in this package.
// Using a custom type prevents collisions with keys from other packages
// that might use the same underlying string value.
type contextKey string

const (
	HeaderIdempotencyKey = "Idempotency-Key"

	// ContextKeyRequestID is the context key for the request ID.
	ContextKeyRequestID contextKey = "request_id"
	// ContextKeyIdempotencyKey is the context key for the idempotency key.
	ContextKeyIdempotencyKey contextKey = "idempotency_key"
)

// AttachRequestMetadata copies the chi request ID and the client's
// Idempotency-Key header into typed context values so handlers and logs
// can reach them without touching the raw request again.
func AttachRequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), ContextKeyRequestID, middleware.GetReqID(r.Context()))
		ctx = context.WithValue(ctx, ContextKeyIdempotencyKey, r.Header.Get(HeaderIdempotencyKey))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
