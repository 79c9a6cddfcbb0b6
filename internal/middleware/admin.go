package middleware

import (
	"net/http"

	"app/internal/auth"
	"app/internal/logger"
)

// AdminMiddleware guards operator endpoints with a shared token presented in
// the X-Admin-Token header.
func AdminMiddleware(authorizer auth.Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := authorizer.Authorize(r.Header.Get("X-Admin-Token")); err != nil {
				log := logger.New()
				log.Warn().Str("path", r.URL.Path).Msg("Rejected admin request")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
