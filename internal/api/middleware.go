package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/geobase/geobase/internal/config"
	"github.com/geobase/geobase/internal/logging"
	"github.com/geobase/geobase/internal/metrics"
)

// newCORS builds the go-chi/cors handler from configured allowed origins,
// adapted from the teacher's ChiMiddleware.CORS (internal/api/chi_middleware.go).
func newCORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-API-Key"},
		AllowCredentials: false,
		MaxAge:           86400,
	})
}

// newRateLimiter builds a go-chi/httprate limiter keyed by client IP,
// recording a rejection metric on limit (teacher's ChiMiddleware.RateLimit).
func newRateLimiter(requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RecordRateLimitHit(r.URL.Path)
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		}),
	)
}

// authenticate enforces spec.md §4.6/§6's shared-secret X-API-Key header. A
// blank configured key disables the check only in development, mirroring
// the teacher's dev-mode auth bypass.
func authenticate(cfg config.SecurityConfig, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.APIKey == "" && env == "development" {
				next.ServeHTTP(w, r)
				return
			}
			got := r.Header.Get("X-API-Key")
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(cfg.APIKey)) != 1 {
				writeError(w, http.StatusUnauthorized, "missing or invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogging stamps a request ID (reusing an inbound X-Request-ID) into
// context and logs completion with status and duration, the teacher's
// RequestIDWithLogging middleware adapted to zerolog.
func requestLogging(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = logging.GenerateRequestID()
			}
			w.Header().Set("X-Request-ID", requestID)

			ctx := logging.ContextWithRequestID(r.Context(), requestID)
			logger := base.With().Str("request_id", requestID).Logger()
			ctx = logging.ContextWithLogger(ctx, logger)

			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			metrics.RecordAPIRequest(r.Method, r.URL.Path, strconv.Itoa(ww.Status()), time.Since(start))
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request handled")
		})
	}
}

// trackActive wraps the handler chain with the in-flight request gauge.
func trackActive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)
		next.ServeHTTP(w, r)
	})
}
