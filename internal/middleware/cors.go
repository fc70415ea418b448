package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS only matters for the JSON endpoints; pages are same-origin. Credentials
// are allowed once explicit origins are configured.
func CORS(origins []string) func(http.Handler) http.Handler {
	wildcard := len(origins) == 0
	if wildcard {
		origins = []string{"*"}
	}

	handler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-User-ID", "X-Tenant-ID", "X-User-Role"},
		MaxAge:           3600,
		AllowCredentials: !wildcard,
	})

	return handler.Handler
}
