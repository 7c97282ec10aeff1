package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/fuelledger/internal/core"
)

// workIDHeader carries the re-entered work ID on gated requests that have
// no body, such as DELETE.
const workIDHeader = "X-Work-ID"

// WithRequestMetadata adds IP and User-Agent to context for audit logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr // already rewritten by TrustedRealIP
	ctx = core.ContextWithIPAddress(ctx, ip)
	ctx = core.ContextWithUserAgent(ctx, r.Header.Get("User-Agent"))
	return ctx
}

func requestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithRequestMetadata(r.Context(), r)))
	})
}

// workID returns the work ID from the body field, falling back to the
// header. The value is passed on as typed; the gate compares it exactly.
func workID(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return r.Header.Get(workIDHeader)
}
