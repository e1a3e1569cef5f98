package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/chflat/internal/core"
)

// withRequestMetadata adds the client IP to context for the transfer journal.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClientIP(ctx, clientIP(r))
}
