package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	v1 "github.com/gosuda/boardsync/internal/api/v1"
	"github.com/gosuda/boardsync/internal/api/ws"
	"github.com/gosuda/boardsync/internal/config"
	"github.com/gosuda/boardsync/internal/server/middleware"
)

// Boards is the board service behind both the REST API and the change
// feed. *feed.Service satisfies it.
type Boards interface {
	v1.BoardService
	ws.Subscriber
}

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	wsHub      *ws.Hub
	cfg        *config.Config
}

// New creates a Server with all routes wired. ctx bounds the background
// sweepers of the rate limiters.
func New(ctx context.Context, cfg *config.Config, boards Boards) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(requestLogger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	router.Use(middleware.RateLimitByIP(ctx, cfg.Server.RateLimit*2, cfg.Server.RateBurst*2))

	hub := ws.NewHub(boards, originPatterns(cfg.Server.CORSOrigins))

	s := &Server{
		router: router,
		wsHub:  hub,
		cfg:    cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT.Secret))
		r.Use(middleware.RequireBoardRole())
		r.Use(middleware.RateLimit(ctx, cfg.Server.RateLimit, cfg.Server.RateBurst))

		apiConfig := huma.DefaultConfig("Boardsync API", "1.0.0")
		apiConfig.Servers = []*huma.Server{
			{URL: "/api/v1"},
		}
		api := humachi.New(r, apiConfig)
		registerAPIRoutes(api, boards)
	})

	// WebSocket routes.
	router.Route("/ws", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT.Secret))
		r.Use(middleware.RequireBoardRole())
		registerWSRoutes(r, hub)
	})

	// Health check (unauthenticated).
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("server: listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
