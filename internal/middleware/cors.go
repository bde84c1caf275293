package middleware

import (
	"log/slog"
	"net/http"
)

const (
	corsAllowMethods = "GET, OPTIONS, POST, PUT, PATCH, DELETE"
	corsAllowHeaders = "Origin, X-Requested-With, Content-Type, Accept, X-XSRF-TOKEN"
	corsMaxAge       = "3600"
)

// OriginPolicyConfig holds the origin allow-list
type OriginPolicyConfig struct {
	AllowedOrigins []string
	// AllowMissingOrigin lets requests without an Origin header (same-origin
	// or non-browser clients) through
	AllowMissingOrigin bool
}

// OriginPolicy stamps the CORS headers on every response and only lets
// requests from allowed origins reach the router. A rejected request gets
// the first allowed origin back, so the browser reports a concrete mismatch,
// and an empty 200 response.
func OriginPolicy(config OriginPolicyConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(config.AllowedOrigins))
	for _, origin := range config.AllowedOrigins {
		allowed[origin] = struct{}{}
	}

	var fallback string
	if len(config.AllowedOrigins) > 0 {
		fallback = config.AllowedOrigins[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := w.Header()
			header.Set("Access-Control-Allow-Credentials", "true")
			header.Set("Access-Control-Allow-Methods", corsAllowMethods)
			header.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			header.Set("Access-Control-Max-Age", corsMaxAge)
			header.Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			if origin == "" && config.AllowMissingOrigin {
				next.ServeHTTP(w, r)
				return
			}

			if _, ok := allowed[origin]; !ok {
				logger.Warn("attempted access from non-allowed origin",
					slog.String("origin", origin),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				if fallback != "" {
					header.Set("Access-Control-Allow-Origin", fallback)
				}
				return
			}

			header.Set("Access-Control-Allow-Origin", origin)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
