package core

import (
	"context"

	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const ctxKeyClientIP contextKey = "client_ip"

// ContextWithClientIP records the caller's address for the transfer journal.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyClientIP, ip)
}

// ClientIPFromContext extracts the caller's address from context.
func ClientIPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyClientIP).(string); ok {
		return v
	}
	return ""
}

// RequestIDFromContext returns the id assigned by chi's RequestID middleware.
func RequestIDFromContext(ctx context.Context) string {
	return middleware.GetReqID(ctx)
}
