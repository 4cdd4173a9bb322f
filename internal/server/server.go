package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ziadkadry99/promptlab/internal/config"
	"github.com/ziadkadry99/promptlab/internal/db"
	"github.com/ziadkadry99/promptlab/internal/llm"
	"github.com/ziadkadry99/promptlab/internal/store"
)

// Config holds server configuration.
type Config struct {
	Host       string
	Port       int
	ProjectDir   string // evaluation workspace served by the API
	OutputDir    string // root for run output directories
	MCPServerURL string // optional MCP server probed for tool context
	AllowAll     bool   // allow all CORS origins (dev mode)
	Eval         config.EvalDefaults
}

// Server exposes the model service and evaluation runner over HTTP.
type Server struct {
	cfg        Config
	service    *llm.Service
	store      *store.Store
	history    *db.DB // nil disables run history endpoints
	router     chi.Router
	httpServer *http.Server

	mu   sync.Mutex
	runs map[string]*runHandle
}

// New creates a server over the given model service. history may be
// nil when run history persistence is disabled.
func New(cfg Config, service *llm.Service, history *db.DB) *Server {
	s := &Server{
		cfg:     cfg,
		service: service,
		store:   store.New(cfg.OutputDir),
		history: history,
		runs:    make(map[string]*runHandle),
	}

	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	s.registerRoutes(r)

	return r
}

// Router returns the chi router, exposed for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured host and port.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("server: promptlab listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown cancels in-flight runs and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, h := range s.runs {
		h.run.Cancel()
	}
	s.mu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
