package apiapp

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/GK-FY/bulk/internal/infra/metrics"
	"github.com/GK-FY/bulk/internal/services/auth"
	httperrors "github.com/GK-FY/bulk/internal/transport/http/errors"
)

const apiKeyHeader = "X-API-Key"

func ApplyMiddlewares(r chiRouter, log *zap.Logger, m *metrics.Metrics) {
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(requestLogger(log, m))
}

// TokenVerifier checks a signed admin token.
type TokenVerifier interface {
	Parse(raw string) (auth.Claims, error)
}

// APIKeyMiddleware accepts the key from X-API-Key or an Authorization bearer
// token. A bearer value that is not the key is tried against tokens, which
// may be nil. An empty key disables the check.
func APIKeyMiddleware(key string, tokens TokenVerifier, log *zap.Logger) func(http.Handler) http.Handler {
	key = strings.TrimSpace(key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := strings.TrimSpace(r.Header.Get(apiKeyHeader))
			bearer := false
			if provided == "" {
				provided, bearer = extractBearerToken(r.Header.Get("Authorization"))
			}
			if provided != "" && subtle.ConstantTimeCompare([]byte(provided), []byte(key)) == 1 {
				next.ServeHTTP(w, r)
				return
			}
			if bearer && tokens != nil {
				if _, err := tokens.Parse(provided); err == nil {
					next.ServeHTTP(w, r)
					return
				}
			}

			if log != nil {
				log.Debug("api key rejected", zap.String("path", r.URL.Path))
			}
			httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
				Code:    "UNAUTHORIZED",
				Message: "invalid api key",
			})
		})
	}
}

func CORSMiddleware(origins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", apiKeyHeader},
		MaxAge:         600,
	}).Handler
}

func extractBearerToken(value string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}

func requestLogger(log *zap.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.HTTPRequest(route, status)

			if log != nil {
				log.Info("http_request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", status),
					zap.Duration("duration", time.Since(start)),
				)
			}
		})
	}
}

type chiRouter interface {
	Use(middlewares ...func(http.Handler) http.Handler)
}
