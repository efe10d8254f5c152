// Package server is the outer HTTP surface: the websocket endpoint
// clients hold open, the synthesis API, and static serving for rendered
// audio.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/voxgate/voxgate/internal/config"
	"github.com/voxgate/voxgate/internal/connection"
	"github.com/voxgate/voxgate/internal/router"
	"github.com/voxgate/voxgate/internal/store"
	"github.com/voxgate/voxgate/internal/synth"
)

// Server wires the gateway components behind one HTTP listener.
type Server struct {
	cfg      config.ServerConfig
	registry *connection.Registry
	tasks    *router.Router
	pool     *synth.Pool
	files    *store.Store
	logger   *slog.Logger

	sendTimeout time.Duration
	upgrader    websocket.Upgrader
	httpServer  *http.Server
}

// New builds the server and its route table.
func New(
	cfg config.ServerConfig,
	sendTimeout time.Duration,
	registry *connection.Registry,
	tasks *router.Router,
	pool *synth.Pool,
	files *store.Store,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:         cfg,
		registry:    registry,
		tasks:       tasks,
		pool:        pool,
		files:       files,
		logger:      logger.With("component", "server"),
		sendTimeout: sendTimeout,
		upgrader:    makeUpgrader(cfg.AllowedOrigins),
	}

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: s.Handler(),
	}

	return s
}

// Handler returns the route table. Exposed separately so tests can mount
// it on an httptest server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(s.cfg.AllowedOrigins),
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/ws/{client_id}", s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Post("/synthesize", s.handleSynthesize)
		r.Delete("/tasks/{task_id}", s.handleAbandonTask)
		r.Get("/voices", s.handleListVoices)
		r.Post("/voices", s.handleUploadVoice)
		r.Post("/uploads", s.handleUpload)
		r.Get("/stats", s.handleStats)
		r.Get("/config", s.handleConfig)
		r.Get("/examples", s.handleExamples)
	})

	r.Get("/healthz", s.handleHealth)

	r.Handle("/outputs/*", http.StripPrefix("/outputs/",
		http.FileServer(http.Dir(s.files.OutputsDir()))))
	r.Handle("/uploads/*", http.StripPrefix("/uploads/",
		http.FileServer(http.Dir(s.files.UploadsDir()))))

	return r
}

// Start runs the listener until Shutdown or a listen error.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and drains in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// makeUpgrader creates a websocket upgrader with origin checking.
// Empty or ["*"] allows all origins; non-browser clients with no Origin
// header are always allowed.
func makeUpgrader(origins []string) websocket.Upgrader {
	allowAll := len(origins) == 0 || (len(origins) == 1 && origins[0] == "*")
	originSet := make(map[string]bool, len(origins))
	for _, o := range origins {
		originSet[o] = true
	}

	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return originSet[origin]
		},
	}
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
