package resolver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Charliesj0129/pixAV/internal/logger"
)

// NewRouter wires the resolver routes and middleware.
//
// /resolve and /stream run under a request timeout that covers the
// upstream fetch. /local does not: streaming a large file can
// legitimately outlive any fixed deadline.
func NewRouter(h *Handler, limiter *rateLimiter) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(limiter.middleware)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/resolve/{videoID}", h.Resolve)
			r.Get("/stream/{videoID}", h.Stream)
		})

		r.Get("/local/{videoID}", h.Local)
	})

	return r
}

// requestLogger attaches a per-request LogContext and logs each request
// with its status and duration. RemoteAddr holds the real client IP here
// because RealIP runs earlier in the chain.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		lc := logger.NewLogContext("resolver").WithClientIP(r.RemoteAddr)
		ctx := logger.WithContext(r.Context(), lc)
		r = r.WithContext(ctx)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.InfoCtx(ctx, "resolver request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
