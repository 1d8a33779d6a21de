package resolver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Charliesj0129/pixAV/internal/logger"
	"github.com/Charliesj0129/pixAV/pkg/metrics"
)

// Server hosts the resolver HTTP surface.
type Server struct {
	server       *http.Server
	addr         string
	shutdownOnce sync.Once
}

// NewServer creates the resolver server over a prepared handler set.
// m may be nil to disable metrics.
//
// WriteTimeout stays unset: /local streams whole media files and a
// fixed deadline would cut long downloads off.
func NewServer(cfg Config, h *Handler, m metrics.ResolverMetrics) *Server {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	router := NewRouter(h, newRateLimiter(cfg.RateLimitRPM, m))

	return &Server{
		server: &http.Server{
			Addr:        addr,
			Handler:     router,
			ReadTimeout: 10 * time.Second,
			IdleTimeout: 60 * time.Second,
		},
		addr: addr,
	}
}

// Start serves until the context is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("resolver listening", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("resolver shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("resolver server failed: %w", err)
	}
}

// Stop drains in-flight requests and shuts the server down. Safe to
// call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("resolver shutdown error: %w", err)
		} else {
			logger.Info("resolver stopped")
		}
	})
	return shutdownErr
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}
