package config

import (
	"testing"
	"time"
)

func TestDefaultGame(t *testing.T) {
	cfg := DefaultGame()

	if cfg.MaxRoomPlayers != 5 {
		t.Errorf("Expected 5 players per room, got %d", cfg.MaxRoomPlayers)
	}
	if cfg.MagazineSize != 8 || cfg.ReserveCap != 24 {
		t.Errorf("Expected 8/24 loadout, got %d/%d", cfg.MagazineSize, cfg.ReserveCap)
	}
	if cfg.BaseDamage != 30 || cfg.DamageFloor != 1 {
		t.Errorf("Expected damage 30 with floor 1, got %d/%d", cfg.BaseDamage, cfg.DamageFloor)
	}
}

func TestGameFromEnv(t *testing.T) {
	t.Setenv("MAP_PATH", "/tmp/arena.txt")
	t.Setenv("DAMAGE_FLOOR", "0")
	t.Setenv("IDLE_TIMEOUT", "90s")
	t.Setenv("SWEEP_INTERVAL", "bogus")

	cfg := GameFromEnv()

	if cfg.MapPath != "/tmp/arena.txt" {
		t.Errorf("Expected MAP_PATH override, got %q", cfg.MapPath)
	}
	if cfg.DamageFloor != 0 {
		t.Errorf("Expected damage floor 0, got %d", cfg.DamageFloor)
	}
	if cfg.IdleTimeout != 90*time.Second {
		t.Errorf("Expected idle timeout 90s, got %v", cfg.IdleTimeout)
	}
	if cfg.SweepInterval != DefaultGame().SweepInterval {
		t.Errorf("Expected default sweep interval for a bad value, got %v", cfg.SweepInterval)
	}
}

func TestServerFromEnv(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("EVENT_LOG_PATH", "")
	t.Setenv("DISABLE_DEBUG_SERVER", "true")

	cfg := ServerFromEnv()

	if cfg.Port != 8081 {
		t.Errorf("Expected port 8081, got %d", cfg.Port)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("Expected 2 trimmed origins, got %v", cfg.CORSOrigins)
	}
	if cfg.EventLogPath != "" {
		t.Errorf("Expected memory-only event log, got %q", cfg.EventLogPath)
	}
	if cfg.DebugServer {
		t.Error("Expected debug server disabled")
	}
}

func TestServerLimitsFromEnv(t *testing.T) {
	t.Setenv("HTTP_RATE", "50")
	t.Setenv("WEBHOOK_BURST", "4")
	t.Setenv("WS_MAX_PER_IP", "0")
	t.Setenv("WS_MAX_CONNECTIONS", "bad")

	cfg := ServerFromEnv()
	def := DefaultServer()

	if cfg.RequestsPerSecond != 50 {
		t.Errorf("Expected 50 requests/s, got %v", cfg.RequestsPerSecond)
	}
	if cfg.MessageBurst != 4 {
		t.Errorf("Expected message burst 4, got %d", cfg.MessageBurst)
	}
	if cfg.MaxConnectionsPerIP != def.MaxConnectionsPerIP || cfg.MaxConnections != def.MaxConnections {
		t.Errorf("Expected default connection limits, got %d/%d", cfg.MaxConnections, cfg.MaxConnectionsPerIP)
	}
}

func TestChatFromEnv(t *testing.T) {
	t.Setenv("CHAT_RATE", "2.5")
	t.Setenv("CHAT_BURST", "3")
	t.Setenv("CHAT_WORKERS", "-1")

	cfg := ChatFromEnv()

	if cfg.CommandsPerSecond != 2.5 || cfg.Burst != 3 {
		t.Errorf("Expected 2.5/3, got %v/%d", cfg.CommandsPerSecond, cfg.Burst)
	}
	if cfg.Workers != DefaultChat().Workers {
		t.Errorf("Expected default workers for a negative value, got %d", cfg.Workers)
	}
}
