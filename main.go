// reson8 signaling server: owns the channel tree, tracks presence,
// mediates the WebRTC voice handshake, and fans events out to every
// connected session over a single WebSocket endpoint.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/akinalp/reson8/config"
	"github.com/akinalp/reson8/database"
	"github.com/akinalp/reson8/durable"
	"github.com/akinalp/reson8/logging"
	"github.com/akinalp/reson8/permission"
	"github.com/akinalp/reson8/presence"
	"github.com/akinalp/reson8/services"
	"github.com/akinalp/reson8/sfu"
	"github.com/akinalp/reson8/ws"
)

func main() {
	start := time.Now()

	if err := logging.Init(os.Getenv("RESON8_ENV") == "dev"); err != nil {
		panic(err)
	}
	defer logging.Sync()
	log := logging.L()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	migrations, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	if err != nil {
		log.Fatal("embedded migrations missing", zap.Error(err))
	}
	db, err := database.New(cfg.Durable.URL, migrations)
	if err != nil {
		log.Fatal("failed to open durable store", zap.Error(err))
	}

	serverRepo := durable.NewSQLiteServerRepo(db.Conn)
	channelRepo := durable.NewSQLiteChannelRepo(db.Conn)
	messageRepo := durable.NewSQLiteMessageRepo(db.Conn)
	roleRepo := durable.NewSQLiteRoleRepo(db.Conn)
	userRepo := durable.NewSQLiteUserRepo(db.Conn)

	ctx := context.Background()

	serverID, err := ensureServerRecord(ctx, db, cfg)
	if err != nil {
		log.Fatal("failed to ensure server record", zap.Error(err))
	}
	if cfg.Seed {
		if err := seedTemplate(ctx, serverID, roleRepo, channelRepo); err != nil {
			log.Fatal("failed to seed template", zap.Error(err))
		}
	}

	var pres presence.Store
	if strings.HasPrefix(cfg.Presence.URL, "redis://") || strings.HasPrefix(cfg.Presence.URL, "rediss://") {
		pres, err = presence.NewRedisStore(ctx, cfg.Presence.URL)
		if err != nil {
			log.Fatal("failed to connect to presence store", zap.Error(err))
		}
		log.Info("presence store: redis", zap.String("url", cfg.Presence.URL))
	} else {
		pres = presence.NewMemoryStore()
		log.Info("presence store: in-process")
	}

	hub := ws.NewHub()
	go hub.Run()

	sfuCtx, stopSFU := context.WithCancel(ctx)
	defer stopSFU()
	coordinator, err := sfu.New(sfuCtx, cfg.SFU, cfg.TURN, hub)
	if err != nil {
		log.Fatal("failed to start SFU coordinator", zap.Error(err))
	}

	evaluator := permission.New(roleRepo)
	sessionSvc := services.NewSessionService(serverRepo, userRepo, roleRepo, channelRepo, pres, cfg.Admin.InstanceID)
	channelSvc := services.NewChannelService(channelRepo, messageRepo, pres, hub)
	messageSvc := services.NewMessageService(messageRepo, channelRepo, hub)
	adminSvc := services.NewAdminService(userRepo, roleRepo)

	dispatcher := ws.NewDispatcher(hub, sessionSvc, channelSvc, messageSvc, adminSvc, coordinator, evaluator)
	wsHandler := ws.NewHandler(hub, dispatcher)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.HandleConnection)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"uptime": int(time.Since(start).Seconds()),
		})
	})

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}).Handler(mux)

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: handler,
	}

	go func() {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("serverId", serverID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listener failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	// Shutdown order: SFU first, then the transport, then the stores.
	coordinator.Close()
	stopSFU()
	hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", zap.Error(err))
	}

	if err := db.Close(); err != nil {
		log.Warn("failed to close durable store", zap.Error(err))
	}
	log.Info("bye")
}
