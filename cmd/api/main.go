package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bloodfinder/internal/aiclient"
	"bloodfinder/internal/alert"
	"bloodfinder/internal/api"
	"bloodfinder/internal/auth"
	"bloodfinder/internal/chat"
	"bloodfinder/internal/config"
	"bloodfinder/internal/dashboard"
	"bloodfinder/internal/donor"
	"bloodfinder/internal/emergency"
	"bloodfinder/internal/logging"
	"bloodfinder/internal/queue"
	"bloodfinder/internal/relay"
	"bloodfinder/internal/render"
	"bloodfinder/internal/store"
	"bloodfinder/internal/telegram"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "bloodfinder-api")
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	ctx := context.Background()
	health := map[string]api.HealthCheck{}

	var (
		donorRepo     donor.Repository
		emergencyRepo emergency.Repository
	)
	if cfg.StoreBackend == "memory" {
		logger.Warn("using in-memory store; data is lost on restart")
		donorRepo = donor.NewMemoryRepository()
		emergencyRepo = emergency.NewMemoryRepository()
	} else {
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if db == nil {
			return fmt.Errorf("open db: %w", err)
		}
		if err != nil {
			logger.Warn("db not reachable", zap.Error(err))
		} else if err := db.Migrate(ctx); err != nil {
			logger.Warn("schema migration failed", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		health["db"] = db.Healthy
		donorRepo = donor.NewPostgresRepository(db.Client)
		emergencyRepo = emergency.NewPostgresRepository(db.Client)
	}

	var redisClient *store.Redis
	needRedis := cfg.QueueBackend != "memory" && cfg.AlertMode == "queue"
	if cfg.StoreBackend != "memory" || needRedis {
		var err error
		redisClient, err = store.NewRedis(cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer func() { _ = redisClient.Close() }()
		health["redis"] = redisClient.Healthy
	}

	tg := telegram.NewClient(cfg.TGAPIBase, cfg.TGBotToken, logger)
	if missing := cfg.MissingKeys(config.RelayKeys); len(missing) > 0 {
		logger.Warn("telegram relay not configured", zap.Strings("missing", missing))
	}

	var alerter emergency.Alerter
	if cfg.AlertMode == "queue" {
		var q queue.Queue
		if cfg.QueueBackend == "memory" {
			// Same-process queue: drain it here since no separate worker can see it.
			mem := queue.NewInMemory(64)
			worker := alert.NewWorker(alert.NewDirect(tg, cfg.TGChannelID, cfg.Branding.AppName).In(cfg.Location), logger)
			workerCtx, stop := context.WithCancel(ctx)
			defer stop()
			go func() { _ = worker.Run(workerCtx, mem) }()
			q = mem
		} else {
			q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey, logger)
		}
		alerter = alert.NewQueued(q)
	} else {
		alerter = alert.NewDirect(tg, cfg.TGChannelID, cfg.Branding.AppName).In(cfg.Location)
	}

	var revoker auth.Revoker
	if redisClient != nil {
		revoker = auth.NewRedisRevoker(redisClient.Client)
	}
	sessions := auth.NewSessions(auth.Options{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
		SigningKey:    cfg.SessionKey,
		Issuer:        cfg.SessionIssuer,
		TTL:           cfg.SessionTTL,
	}, revoker)

	donors := donor.NewService(donorRepo, cfg.CountryCode)
	emergencies := emergency.NewService(emergencyRepo, alerter, cfg.CountryCode, logger, emergency.WithLocation(cfg.Location))

	handler := api.New(api.Deps{
		Config:      cfg,
		Donors:      donors,
		Emergencies: emergencies,
		Dashboard:   dashboard.NewService(donors, emergencies),
		Sessions:    sessions,
		Relay:       relay.NewHandler(tg, cfg.TGChannelID, cfg.RelayResponse, cfg.Branding.AppName, logger),
		Chats:       chat.NewRegistry(aiclient.NewClient(cfg.AIChatEndpoint, logger), 6*time.Hour, chat.WithLogger(logger)),
		Renderer:    render.NewRenderer(),
		Health:      health,
		Logger:      logger,
	})
	r := api.NewRouter(handler, api.RouterOptions{
		RateLimitPerMin: cfg.RateLimitPerMin,
		RelayPerMin:     cfg.RelayPerMin,
		Logger:          logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	logger.Info("server exited")
	return nil
}
