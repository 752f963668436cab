package middleware

import (
	"net/http"

	"github.com/leslieo2/go-healthchecks/internal/constants"
)

// NoCacheMiddleware marks every response as uncacheable. Health results must
// never be served from a proxy or browser cache.
func NoCacheMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(constants.HeaderCacheControl, constants.NoCacheDirectives)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}
