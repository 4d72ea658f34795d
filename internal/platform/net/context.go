// Package net holds request-scoped context helpers shared by http code
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// WithRequestID stores id where chi's RequestID middleware would
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, chimw.RequestIDKey, id)
}

// RequestID returns the chi request id on ctx, or ""
func RequestID(ctx context.Context) string { return chimw.GetReqID(ctx) }
