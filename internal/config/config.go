// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for game rules and server settings.
//
// IMPORTANT: When changing values, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// GAME RULES
// =============================================================================

// GameConfig holds the arena rules shared by every room.
type GameConfig struct {
	MapPath        string // Path to the plain-text map loaded at startup
	MaxRoomPlayers int    // Members allowed per room
	MaxRoomNameLen int    // Room names are 1..MaxRoomNameLen characters

	MaxHealth    int // Health on spawn and pickup cap
	HealthPickup int // Health restored by a health pack
	MagazineSize int // Rounds in the gun after reload
	ReserveCap   int // Reserve rounds on spawn and reserve cap
	AmmoPickup   int // Reserve rounds granted by an ammo pack

	BaseDamage  int // Damage dealt to the nearest target
	DamageFloor int // Minimum damage for targets further down the line

	IdleTimeout   time.Duration // Players idle longer than this are removed
	SweepInterval time.Duration // How often the idle sweep runs
}

// DefaultGame returns the default game rules.
func DefaultGame() GameConfig {
	return GameConfig{
		MapPath:        "assets/map.txt",
		MaxRoomPlayers: 5,
		MaxRoomNameLen: 39,
		MaxHealth:      100,
		HealthPickup:   10,
		MagazineSize:   8,
		ReserveCap:     24,
		AmmoPickup:     24,
		BaseDamage:     30,
		DamageFloor:    1,
		IdleTimeout:    5 * time.Minute,
		SweepInterval:  60 * time.Second,
	}
}

// GameFromEnv returns game rules with environment variable overrides.
func GameFromEnv() GameConfig {
	cfg := DefaultGame()

	if p := os.Getenv("MAP_PATH"); p != "" {
		cfg.MapPath = p
	}
	if v := getEnvInt("DAMAGE_FLOOR", -1); v >= 0 {
		cfg.DamageFloor = v
	}
	if d := getEnvDuration("IDLE_TIMEOUT", 0); d > 0 {
		cfg.IdleTimeout = d
	}
	if d := getEnvDuration("SWEEP_INTERVAL", 0); d > 0 {
		cfg.SweepInterval = d
	}

	return cfg
}

// =============================================================================
// CHAT CONFIGURATION
// =============================================================================

// ChatConfig controls inbound command handling.
type ChatConfig struct {
	CommandsPerSecond float64       // Flood limiter refill rate per identity
	Burst             int           // Flood limiter burst per identity
	QueueSize         int           // Buffered commands before dropping
	Workers           int           // Worker goroutines (identities are sharded)
	ReplyTimeout      time.Duration // How long a transport waits for a reply
}

// DefaultChat returns the default chat configuration.
func DefaultChat() ChatConfig {
	return ChatConfig{
		CommandsPerSecond: 4,
		Burst:             8,
		QueueSize:         256,
		Workers:           4,
		ReplyTimeout:      5 * time.Second,
	}
}

// ChatFromEnv returns chat configuration with environment variable overrides.
func ChatFromEnv() ChatConfig {
	cfg := DefaultChat()

	if v := getEnvFloat("CHAT_RATE", 0); v > 0 {
		cfg.CommandsPerSecond = v
	}
	if v := getEnvInt("CHAT_BURST", 0); v > 0 {
		cfg.Burst = v
	}
	if v := getEnvInt("CHAT_WORKERS", 0); v > 0 {
		cfg.Workers = v
	}

	return cfg
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// NotifyConfig controls outbound hit/kill notifications.
type NotifyConfig struct {
	QueueSize   int           // Pending notifications before drop-newest
	SendTimeout time.Duration // Per-send deadline
	MaxBackoff  time.Duration // Upper bound on failure backoff
}

// DefaultNotify returns the default notification configuration.
func DefaultNotify() NotifyConfig {
	return NotifyConfig{
		QueueSize:   100,
		SendTimeout: 2 * time.Second,
		MaxBackoff:  30 * time.Second,
	}
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int
	CORSOrigins  []string
	EventLogPath string
	DebugServer  bool

	// Edge limits, applied before a message reaches the command queue
	RequestsPerSecond   float64 // HTTP requests per client IP
	RequestBurst        int
	MessagesPerSecond   float64 // Webhook chat messages per identity
	MessageBurst        int
	MaxConnections      int // Open WebSocket connections in total
	MaxConnectionsPerIP int // Open WebSocket connections per client IP
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:                3000,
		EventLogPath:        "events.jsonl",
		DebugServer:         true,
		RequestsPerSecond:   10,
		RequestBurst:        20,
		MessagesPerSecond:   8,
		MessageBurst:        16,
		MaxConnections:      500,
		MaxConnectionsPerIP: 10,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}
	if p, ok := os.LookupEnv("EVENT_LOG_PATH"); ok {
		cfg.EventLogPath = p
	}
	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.DebugServer = false
	}
	if v := getEnvFloat("HTTP_RATE", 0); v > 0 {
		cfg.RequestsPerSecond = v
	}
	if v := getEnvInt("HTTP_BURST", 0); v > 0 {
		cfg.RequestBurst = v
	}
	if v := getEnvFloat("WEBHOOK_RATE", 0); v > 0 {
		cfg.MessagesPerSecond = v
	}
	if v := getEnvInt("WEBHOOK_BURST", 0); v > 0 {
		cfg.MessageBurst = v
	}
	if v := getEnvInt("WS_MAX_CONNECTIONS", 0); v > 0 {
		cfg.MaxConnections = v
	}
	if v := getEnvInt("WS_MAX_PER_IP", 0); v > 0 {
		cfg.MaxConnectionsPerIP = v
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Game   GameConfig
	Chat   ChatConfig
	Notify NotifyConfig
	Server ServerConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Game:   GameFromEnv(),
		Chat:   ChatFromEnv(),
		Notify: DefaultNotify(),
		Server: ServerFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
