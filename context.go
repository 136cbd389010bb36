package adminauth

import (
	"context"

	"github.com/MrEthical07/adminauth/internal/requestctx"
)

// WithClientIP attaches the caller's IP address to ctx. The Engine uses it for
// failed-authentication throttling and audit records. The middleware guards set it
// from the request automatically.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return requestctx.WithClientIP(ctx, ip)
}

func clientIPFromContext(ctx context.Context) string {
	return requestctx.ClientIP(ctx)
}
