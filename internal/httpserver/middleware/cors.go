package middleware

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/config"
)

// exposedHeaders are readable by browser clients on cross-origin responses.
var exposedHeaders = []string{"X-Request-Id", "X-Trace-Id", "X-Task-Cache", "X-Task-Model", "Retry-After"}

// CORS applies the configured cross-origin policy. A nil config disables it.
func CORS(cfg *config.CORSConfig) Middleware {
	if cfg == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   append([]string{"X-Request-Id"}, cfg.AllowedHeaders...),
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})
	return c.Handler
}
