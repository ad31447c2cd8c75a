package api

import (
	"net/http"
	"time"

	"powpow/internal/chat"
	"powpow/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// EngineInterface defines the game engine methods used by the API.
// Keep this minimal - only include methods the API layer actually calls.
type EngineInterface interface {
	// Rooms lists the open rooms
	Rooms() []game.RoomInfo
	// RoomScore ranks the members of a room
	RoomScore(name string) ([]game.ScoreEntry, error)
	// RoomSnapshot returns an immutable copy of a room
	RoomSnapshot(name string) (game.RoomSnapshot, error)
	// Stats returns engine counters
	Stats() game.EngineStats
	// GetEventLogStats returns event log statistics
	GetEventLogStats() map[string]interface{}
}

// ChatInterface is the command pipeline behind the chat endpoints
type ChatInterface interface {
	CommandSubmitter
	Stats() chat.QueueStats
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Engine: engine,
//	    Chat:   queue,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the game engine (required)
	Engine EngineInterface

	// Chat is the command queue (required)
	Chat ChatInterface

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *RequestLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// Connections is the WebSocket connection limiter reported by /api/stats.
	// Optional.
	Connections *ConnectionLimiter

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, uses localhost origins.
	CORSOrigins []string

	// ReplyTimeout bounds how long a chat request waits for its reply
	ReplyTimeout time.Duration

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	engine       EngineInterface
	chat         ChatInterface
	limits       *RequestLimiter
	connections  *ConnectionLimiter
	replyTimeout time.Duration
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE apart from the rate limiter's cleanup
// goroutine when RateLimiter is nil: no network listeners are opened,
// nothing else is started.
// This makes it safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewRequestLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	replyTimeout := cfg.ReplyTimeout
	if replyTimeout <= 0 {
		replyTimeout = 5 * time.Second
	}

	h := &routerHandlers{
		engine:       cfg.Engine,
		chat:         cfg.Chat,
		limits:       rateLimiter,
		connections:  cfg.Connections,
		replyTimeout: replyTimeout,
	}

	r.Route("/api", func(r chi.Router) {
		// Chat transport
		r.Post("/chat/message", h.handleChatMessage)

		// Rooms
		r.Get("/rooms", h.handleGetRooms)
		r.Get("/rooms/{name}", h.handleGetRoom)
		r.Get("/rooms/{name}/score", h.handleGetRoomScore)
		r.Get("/rooms/{name}/snapshot.png", h.handleGetRoomImage)

		r.Get("/stats", h.handleGetStats)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
