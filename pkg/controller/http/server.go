package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/whatcdk/pkg/domain/interfaces"
)

// config holds internal HTTP server configuration
type config struct {
	addr           string
	resolveTimeout time.Duration
	maxAge         time.Duration
}

// Option is a functional option for Server configuration
type Option func(*config)

// WithAddr sets the server address
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithResolveTimeout bounds how long a request waits for release resolution
func WithResolveTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.resolveTimeout = timeout
	}
}

// WithMaxAge sets the Cache-Control max-age of release responses. Zero disables the header.
func WithMaxAge(maxAge time.Duration) Option {
	return func(c *config) {
		c.maxAge = maxAge
	}
}

// Server represents the HTTP server
type Server struct {
	*http.Server
}

// NewServer creates a new HTTP server exposing resolved releases
func NewServer(
	ctx context.Context,
	resolverUC interfaces.ResolverUseCase,
	opts ...Option,
) (*Server, error) {
	// Default configuration
	cfg := &config{
		addr:           "localhost:8080",
		resolveTimeout: 10 * time.Second,
	}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware(ctx))
	router.Use(middleware.Recoverer)

	// Health check
	router.Get("/health", newHealthHandler(resolverUC))

	// Release API
	releaseHandler := NewReleaseHandler(resolverUC, cfg.resolveTimeout, cfg.maxAge)
	router.Route("/api/releases", func(r chi.Router) {
		r.Get("/", releaseHandler.List)
		r.Get("/{name}", releaseHandler.Get)
	})

	server := &Server{
		Server: &http.Server{
			Addr:              cfg.addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
		},
	}

	return server, nil
}
