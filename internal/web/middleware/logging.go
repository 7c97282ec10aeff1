// Package middleware provides HTTP middleware for the ledger server.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/fuelledger/internal/logging"
)

type ctxKey int

const requestInfoKey ctxKey = iota

// requestInfo is filled in by inner middleware so the access log can name
// the signed-in user after the handler returns.
type requestInfo struct {
	uid       string
	sessionID string
}

// SetPrincipal records who made the request for the access log line.
// It is a no-op outside Logger.
func SetPrincipal(ctx context.Context, uid, sessionID string) {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.uid = uid
		info.sessionID = sessionID
	}
}

// Logger writes one structured line per request.
//
// Log fields:
//   - method, path, status
//   - duration_ms: time spent in the handler chain
//   - ip: client address after TrustedRealIP
//   - uid, session_id: when the request was authenticated
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		info := &requestInfo{}
		r = r.WithContext(context.WithValue(r.Context(), requestInfoKey, info))

		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		logger := logging.WithPrincipal(logging.FromContext(r.Context()), info.uid, info.sessionID)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)
	})
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Flush passes through so wrapping middleware can stream.
func (w *responseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the Flusher for event streams.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
