package web

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/justestif/go-music-personality/internal/listening"
	"github.com/justestif/go-music-personality/internal/logging"
	"github.com/justestif/go-music-personality/internal/session"
)

// DefaultAddr is the default server address.
const DefaultAddr = "127.0.0.1:8080"

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr        string
	TemplatesFS fs.FS
	StaticFS    fs.FS

	Auth        Authenticator
	Library     Library
	Personality Describer
	Sessions    *session.Manager
	Enricher    *listening.Enricher // Optional Last.fm genre enrichment
	Facets      listening.FacetConfig

	RateLimitPerMinute int                             // Per client IP on costly routes; 0 disables
	SnapshotTTL        time.Duration                   // Default: 10m
	Ping               func(ctx context.Context) error // Optional database check for /healthz
	Logger             *zap.Logger
}

// Server is the HTTP server for the web application.
type Server struct {
	router    chi.Router
	server    *http.Server
	templates *Templates
	handlers  *Handlers
	limiter   *RateLimiter
	logger    *zap.Logger
}

// NewServer creates a new web server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = defaultSnapshotTTL
	}
	if cfg.Auth == nil || cfg.Library == nil || cfg.Personality == nil || cfg.Sessions == nil {
		return nil, errors.New("server requires auth, library, personality and sessions")
	}

	templates, err := NewTemplates(cfg.TemplatesFS)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	handlers := &Handlers{
		auth:        cfg.Auth,
		library:     cfg.Library,
		personality: cfg.Personality,
		sessions:    cfg.Sessions,
		templates:   templates,
		snapshots:   NewSnapshotCache(cfg.SnapshotTTL),
		enricher:    cfg.Enricher,
		facets:      cfg.Facets,
		ping:        cfg.Ping,
		logger:      cfg.Logger,
		now:         time.Now,
	}

	s := &Server{
		router:    chi.NewRouter(),
		templates: templates,
		handlers:  handlers,
		limiter:   NewRateLimiter(cfg.RateLimitPerMinute),
		logger:    cfg.Logger,
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.StaticFS)

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second, // Generation can take a while
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(logging.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes(staticFS fs.FS) {
	if staticFS != nil {
		fileServer := http.FileServer(http.FS(staticFS))
		s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	}

	s.router.Get("/", s.handlers.Home)
	s.router.Get("/healthz", s.handlers.Healthz)

	s.router.With(s.limiter.Middleware).Get("/auth/login", s.handlers.Login)
	s.router.Get("/auth/callback", s.handlers.Callback)
	s.router.Post("/auth/logout", s.handlers.Logout)

	s.router.Get("/result", s.handlers.Result)
	s.router.With(s.limiter.Limit(s.handlers.PersonalityRateLimited)).Get("/result/personality", s.handlers.Personality)
	s.router.With(s.limiter.Middleware).Post("/api/personality", s.handlers.PersonalityAPI)
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("url", "http://"+s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}
