package goSession

import (
	"context"

	"github.com/MrEthical07/goSession/transport"
)

// WithRequestID attaches a request ID to ctx. Authenticated requests made with ctx
// carry it in the X-Request-ID header, on the first attempt and on the retry. Without
// one a random ID is generated per request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return transport.WithRequestID(ctx, id)
}

// RequestIDFromContext returns the ID set by [WithRequestID].
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	return transport.RequestIDFromContext(ctx)
}
