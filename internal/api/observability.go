package api

import (
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"powpow/internal/game"
	"powpow/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics with bounded cardinality (no per-player or per-room labels)
var (
	// Chat commands
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "powpow_commands_total",
		Help: "Chat commands processed, by command and outcome",
	}, []string{"command", "outcome"}) // outcome is a game.ErrorKind name

	commandQueueDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "powpow_command_queue_dropped_total",
		Help: "Commands dropped because the queue was full",
	})

	// Combat
	shotsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "powpow_shots_total",
		Help: "Shots fired",
	})

	hitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "powpow_hits_total",
		Help: "Shots that damaged a player",
	})

	killsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "powpow_kills_total",
		Help: "Players killed",
	})

	// Rooms and placement
	activeRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "powpow_active_rooms",
		Help: "Rooms currently open",
	})

	activePlayers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "powpow_active_players",
		Help: "Players currently known to the engine",
	})

	roomsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "powpow_rooms_closed_total",
		Help: "Rooms torn down after the last member left",
	})

	degradedSpawns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "powpow_degraded_spawns_total",
		Help: "Spawns placed without a safe respawn point",
	})

	sweptPlayers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "powpow_swept_players_total",
		Help: "Players removed by the idle sweep",
	})

	// Notifications
	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "powpow_notifications_total",
		Help: "Hit and kill notifications, by outcome",
	}, []string{"outcome"}) // Bounded: "sent", "failed", "dropped"

	// Event log
	eventLogTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "powpow_event_log_total",
		Help: "Events logged since start",
	})

	eventLogDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "powpow_event_log_dropped",
		Help: "Events dropped due to rate limiting or buffer full",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit", "identity"

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern, not the full URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})
)

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // MUST be "127.0.0.1:6060" in production
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe defaults
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060", // Localhost only - NEVER expose externally
	}
}

// StartDebugServer starts the internal observability server.
// It binds to localhost only unless ALLOW_DEBUG_EXTERNAL=true.
func StartDebugServer(cfg ObservabilityConfig) *http.Server {
	log := logger.Component("debug")

	if !cfg.Enabled {
		log.Info("Debug server disabled")
		return nil
	}

	if cfg.ListenAddr != "127.0.0.1:6060" && cfg.ListenAddr != "localhost:6060" {
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			log.Warn("Debug server forced to localhost")
			cfg.ListenAddr = "127.0.0.1:6060"
		}
	}

	mux := http.NewServeMux()

	// pprof endpoints for profiling
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	var handler http.Handler = mux
	if cfg.BasicAuthUser != "" {
		handler = basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: handler}

	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("Debug server starting (pprof, metrics)")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Warn("Debug server error")
		}
	}()

	return srv
}

// basicAuthMiddleware adds basic authentication to the handler
func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware records latency and status per route pattern
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}

// RecordCommand counts a processed chat command
func RecordCommand(command string, err error) {
	commandsTotal.WithLabelValues(command, game.KindOf(err).String()).Inc()
}

// RecordQueueDrop counts a command dropped by a full queue
func RecordQueueDrop() {
	commandQueueDropped.Inc()
}

// RecordShot counts a fired shot
func RecordShot() {
	shotsTotal.Inc()
}

// RecordHit counts a shot landing on a victim
func RecordHit(killed bool) {
	hitsTotal.Inc()
	if killed {
		killsTotal.Inc()
	}
}

// RecordRoomClosed counts a room teardown
func RecordRoomClosed() {
	roomsClosed.Inc()
}

// RecordSpawnDegraded counts a spawn without a safe point
func RecordSpawnDegraded() {
	degradedSpawns.Inc()
}

// RecordSweep counts players removed by the idle sweep
func RecordSweep(removed int) {
	sweptPlayers.Add(float64(removed))
}

// RecordNotification counts a notification outcome
// outcome must be one of: "sent", "failed", "dropped"
func RecordNotification(outcome string) {
	notificationsTotal.WithLabelValues(outcome).Inc()
}

// UpdateEngineStats refreshes the room and player gauges
func UpdateEngineStats(stats game.EngineStats) {
	activeRooms.Set(float64(stats.Rooms))
	activePlayers.Set(float64(stats.Players))
}

// UpdateEventLogStats refreshes the event log gauges
func UpdateEventLogStats(total, dropped uint64) {
	eventLogTotal.Set(float64(total))
	eventLogDropped.Set(float64(dropped))
}

// RecordConnectionRejected increments the rejection counter
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
