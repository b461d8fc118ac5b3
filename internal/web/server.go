// Package web provides the HTTP server and page surface.
package web

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/justestif/drift/internal/bridge"
	"github.com/justestif/drift/internal/idle"
	"github.com/justestif/drift/internal/logger"
	"github.com/justestif/drift/internal/prefs"
	"github.com/justestif/drift/internal/session"
	"github.com/justestif/drift/internal/spotify"
	"github.com/justestif/drift/internal/timer"
	"github.com/justestif/drift/internal/todo"
)

// ServerConfig holds server configuration and wired dependencies.
type ServerConfig struct {
	Addr        string
	TemplatesFS fs.FS
	StaticFS    fs.FS

	Timer   *timer.Engine
	Todos   *todo.Store
	Prefs   *prefs.Manager
	Session *session.Manager
	Spotify *spotify.Client
	Hub     *bridge.Hub
	Idle    *idle.Monitor
}

// Server is the HTTP server for the web application.
type Server struct {
	router    chi.Router
	server    *http.Server
	templates *Templates
	handlers  *Handlers
	hub       *bridge.Hub
}

// NewServer creates a new web server.
func NewServer(cfg ServerConfig) (*Server, error) {
	templates, err := NewTemplates(cfg.TemplatesFS)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	handlers := NewHandlers(HandlerDeps{
		Templates: templates,
		Timer:     cfg.Timer,
		Todos:     cfg.Todos,
		Prefs:     cfg.Prefs,
		Session:   cfg.Session,
		Spotify:   cfg.Spotify,
		Idle:      cfg.Idle,
	})

	router := chi.NewRouter()

	s := &Server{
		router:    router,
		templates: templates,
		handlers:  handlers,
		hub:       cfg.Hub,
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.StaticFS)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes(staticFS fs.FS) {
	// Static files
	fileServer := http.FileServer(http.FS(staticFS))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	// Pages
	s.router.Get("/", s.handlers.Home)

	// Auth routes
	s.router.Get("/auth/login", s.handlers.Login)
	s.router.Get("/callback", s.handlers.Callback)
	s.router.Post("/auth/logout", s.handlers.Logout)

	// Live channel to open pages
	s.router.Get("/ws", s.hub.ServeWS)

	// JSON API
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handlers.FullState)

		r.Route("/timer", func(r chi.Router) {
			r.Get("/", s.handlers.TimerGet)
			r.Post("/toggle", s.handlers.TimerToggle)
			r.Post("/reset", s.handlers.TimerReset)
		})

		r.Route("/todos", func(r chi.Router) {
			r.Get("/", s.handlers.TodosList)
			r.Post("/", s.handlers.TodoAdd)
			r.Post("/{id}/toggle", s.handlers.TodoToggle)
			r.Delete("/{id}", s.handlers.TodoDelete)
		})

		r.Route("/prefs", func(r chi.Router) {
			r.Get("/", s.handlers.PrefsGet)
			r.Put("/", s.handlers.PrefsUpdate)
		})

		r.Route("/spotify", func(r chi.Router) {
			r.Get("/token", s.handlers.SpotifyToken)
			r.Get("/now-playing", s.handlers.SpotifyNowPlaying)
			r.Get("/playlists", s.handlers.SpotifyPlaylists)
			r.Post("/playlists/refresh", s.handlers.SpotifyPlaylistsRefresh)
			r.Post("/play", s.handlers.SpotifyPlay)
			r.Post("/toggle", s.handlers.SpotifyToggle)
			r.Post("/skip", s.handlers.SpotifySkip)
			r.Post("/transfer", s.handlers.SpotifyTransfer)
		})
	})
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logger.Info("server listening", logger.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
		logger.Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
