package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"powpow/internal/api"
	"powpow/internal/chat"
	"powpow/internal/config"
	"powpow/internal/game"
	"powpow/internal/notify"
	"powpow/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// statsInterval is how often the engine gauges are refreshed
const statsInterval = 5 * time.Second

func main() {
	// Load .env from the working directory, then the parent
	envErr := godotenv.Load(".env")
	if envErr != nil {
		envErr = godotenv.Load("../.env")
	}

	logger.Init()
	log := logger.Component("main")

	if envErr != nil {
		log.Debug("No .env file found, using environment variables only")
	}

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig := config.Load()
	gameCfg := appConfig.Game
	serverCfg := appConfig.Server

	arena, err := game.LoadMap(gameCfg.MapPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load map")
	}
	if err := arena.CheckCapacity(gameCfg.MaxRoomPlayers); err != nil {
		log.WithError(err).Fatal("Map cannot hold a full room")
	}
	log.WithFields(logrus.Fields{
		"path":     gameCfg.MapPath,
		"width":    arena.Width(),
		"height":   arena.Height(),
		"respawns": len(arena.RespawnPoints()),
	}).Info("Map loaded")

	// Event log
	eventLog := game.NewEventLog()
	if err := eventLog.Start(serverCfg.EventLogPath); err != nil {
		log.WithError(err).Warn("Event log file disabled, keeping events in memory")
		eventLog.Start("")
	}

	engine := game.NewEngine(arena, game.EngineConfig{
		Rules:    gameCfg,
		EventLog: eventLog,
	})
	log.WithField("seed", engine.Seed()).Info("Game engine ready")

	// Chat pipeline
	chatHandler := chat.NewHandler(engine, appConfig.Chat)
	chatHandler.OnCommand = func(cmd chat.CommandType, err error) {
		api.RecordCommand(cmd.String(), err)
		if cmd == chat.CmdFire && err == nil {
			api.RecordShot()
		}
	}

	queue := chat.NewCommandQueue(chatHandler, chat.QueueConfig{
		BufferSize: appConfig.Chat.QueueSize,
		Workers:    appConfig.Chat.Workers,
	})
	queue.OnDrop = func(chat.InboundMessage) { api.RecordQueueDrop() }
	queue.Start()

	// API server; its WebSocket hub delivers notices
	server := api.NewServer(engine, queue, api.ServerConfig{
		CORSOrigins:         serverCfg.CORSOrigins,
		ReplyTimeout:        appConfig.Chat.ReplyTimeout,
		RateLimit:           api.RateLimitFromConfig(serverCfg),
		MaxConnections:      serverCfg.MaxConnections,
		MaxConnectionsPerIP: serverCfg.MaxConnectionsPerIP,
	})

	dispatcher := notify.NewDispatcher(server.Hub(), appConfig.Notify)
	dispatcher.OnResult = api.RecordNotification
	dispatcher.Start()

	engine.SetCallbacks(game.Callbacks{
		OnHit: func(n game.Notice) {
			api.RecordHit(n.Killed)
			dispatcher.Notify(n.VictimIdentity, chat.NoticeText(n))
		},
		OnKill: func(room, killer, victim string) {
			log.WithFields(logrus.Fields{
				"room":   room,
				"killer": killer,
				"victim": victim,
			}).Debug("Kill")
		},
		OnSpawnDegraded: func(room, identity string) {
			api.RecordSpawnDegraded()
		},
		OnRoomClosed: func(room string) {
			api.RecordRoomClosed()
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Idle sweep
	sweeper := chat.NewSweeper(engine, gameCfg.SweepInterval)
	sweeper.OnSweep = func(removed []string) { api.RecordSweep(len(removed)) }
	go sweeper.Run(ctx)

	go refreshStats(ctx, engine, eventLog)

	// Debug server (pprof + metrics, localhost only)
	var debugServer *http.Server
	if serverCfg.DebugServer {
		debugServer = api.StartDebugServer(api.DefaultObservabilityConfig())
	}

	addr := ":" + strconv.Itoa(serverCfg.Port)
	go func() {
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.WithFields(logrus.Fields{
		"chat":      "POST http://localhost" + addr + "/api/chat/message",
		"websocket": "ws://localhost" + addr + "/ws?identity=<id>&name=<name>",
	}).Info("Server ready! Press Ctrl+C to stop.")

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("API server shutdown")
	}
	if debugServer != nil {
		debugServer.Shutdown(shutdownCtx)
	}
	queue.Stop()
	chatHandler.Close()
	dispatcher.Stop()
	eventLog.Stop()

	log.Info("Goodbye!")
}

// refreshStats keeps the engine and event log gauges current
func refreshStats(ctx context.Context, engine *game.Engine, eventLog *game.EventLog) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			api.UpdateEngineStats(engine.Stats())
			api.UpdateEventLogStats(eventLog.GetTotalCount(), eventLog.GetDroppedCount())
		}
	}
}
