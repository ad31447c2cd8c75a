package api

import (
	"context"
	"net/http"
	"time"

	"powpow/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// ServerConfig configures the API server. Zero limits use the defaults.
type ServerConfig struct {
	CORSOrigins         []string
	ReplyTimeout        time.Duration
	RateLimit           RateLimitConfig
	MaxConnections      int
	MaxConnectionsPerIP int
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with the WebSocket chat hub.
type Server struct {
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *RequestLimiter
	httpServer  *http.Server
}

// NewServer creates a new API server with default production configuration.
//
// IMPORTANT: No listener is opened until Start() is called.
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(engine EngineInterface, commands ChatInterface, cfg ServerConfig) *Server {
	conns := NewConnectionLimiter(cfg.MaxConnections, cfg.MaxConnectionsPerIP)

	s := &Server{
		wsHub: NewWebSocketHub(commands, conns, cfg.ReplyTimeout, cfg.CORSOrigins),
	}

	// Create rate limiter (we track it for cleanup)
	s.rateLimiter = NewRequestLimiter(cfg.RateLimit)

	s.router = NewRouter(RouterConfig{
		Engine:       engine,
		Chat:         commands,
		RateLimiter:  s.rateLimiter,
		Connections:  conns,
		CORSOrigins:  cfg.CORSOrigins,
		ReplyTimeout: cfg.ReplyTimeout,
	})

	// Add WebSocket routes (these need the wsHub instance)
	s.setupWebSocketRoutes()

	return s
}

// setupWebSocketRoutes adds WebSocket-specific routes to the router.
// These routes need access to the wsHub instance, so they can't be
// part of the generic NewRouter factory.
func (s *Server) setupWebSocketRoutes() {
	s.router.Get("/ws", s.wsHub.HandleWebSocket)
}

// Hub returns the WebSocket hub, which doubles as the notification sender
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Start serves HTTP until Shutdown. It returns http.ErrServerClosed after
// a graceful shutdown.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Component("api").WithField("addr", addr).Info("API server starting")

	return s.httpServer.ListenAndServe()
}

// Router returns the HTTP handler for use with httptest.
//
//	server := api.NewServer(engine, queue, api.ServerConfig{})
//	ts := httptest.NewServer(server.Router())
//	defer ts.Close()
func (s *Server) Router() http.Handler {
	return s.router
}

// Shutdown stops accepting requests, closes WebSocket connections and
// stops background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.wsHub.Close()
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	return err
}
