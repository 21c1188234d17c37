package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type contextKey string

const (
	BearerTokenKey contextKey = "bearer_token"
)

// BearerTokenMiddleware forwards the caller's Authorization header to the
// handlers. Requests without one pass through and use the server credential.
func BearerTokenMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearerToken(r.Header.Get("Authorization"))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			logger.Debug("Using caller bearer token", zap.String("path", r.URL.Path))
			ctx := context.WithValue(r.Context(), BearerTokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractBearerToken strips a "Bearer " prefix. A header without the prefix
// is used verbatim.
func ExtractBearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) >= 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

// GetBearerToken extracts the caller token from context
func GetBearerToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(BearerTokenKey).(string)
	return token, ok && token != ""
}
