package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/BradenHooton/restgate/internal/auth"
	pkghttp "github.com/BradenHooton/restgate/pkg/http"
	pkglogger "github.com/BradenHooton/restgate/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
)

type requestLogKey struct{}

// requestLog collects attributes that inner layers contribute to the
// request's single access log line
type requestLog struct {
	mu    sync.Mutex
	attrs []slog.Attr
}

func (l *requestLog) add(attrs ...slog.Attr) {
	l.mu.Lock()
	l.attrs = append(l.attrs, attrs...)
	l.mu.Unlock()
}

func (l *requestLog) snapshot() []slog.Attr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]slog.Attr(nil), l.attrs...)
}

// AnnotateRequestLog adds attributes to the access log line written by
// SecureLogger. Outside SecureLogger it does nothing.
func AnnotateRequestLog(ctx context.Context, attrs ...slog.Attr) {
	if l, ok := ctx.Value(requestLogKey{}).(*requestLog); ok {
		l.add(attrs...)
	}
}

// SecureLogger writes one access log line per request. Query strings that
// carry credentials are redacted and the client address is resolved through
// the trusted proxy list.
func SecureLogger(logger *slog.Logger, ipConfig *pkghttp.IPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := &requestLog{}
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), requestLogKey{}, entry)))

			path := r.URL.Path
			if pkglogger.SanitizeQueryString(r.URL.RawQuery) {
				path += "?[REDACTED]"
			} else if r.URL.RawQuery != "" {
				path += "?" + r.URL.RawQuery
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", path),
				slog.Int("status", wrapped.Status()),
				slog.Int64("bytes", int64(wrapped.BytesWritten())),
				slog.String("duration", time.Since(start).String()),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("client_ip", pkghttp.ExtractClientIP(r, ipConfig)),
			}
			attrs = append(attrs, entry.snapshot()...)

			logger.LogAttrs(r.Context(), slog.LevelInfo, "http_request", attrs...)
		})
	}
}

// LogSessionOutcome records, once the request has been handled, whether it
// ended with an authenticated principal and which role it carried. Mount it
// inside the session middleware so logins and logouts are reflected.
func LogSessionOutcome(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)

		principal := auth.PrincipalFromContext(r.Context())
		AnnotateRequestLog(r.Context(),
			slog.Bool("authenticated", principal != nil),
			slog.String("role", string(auth.IdentityFromContext(r.Context()).Role)),
		)
	})
}
