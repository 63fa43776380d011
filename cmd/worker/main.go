package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"bloodfinder/internal/alert"
	"bloodfinder/internal/config"
	"bloodfinder/internal/logging"
	"bloodfinder/internal/queue"
	"bloodfinder/internal/store"
	"bloodfinder/internal/telegram"
)

// Worker drains queued emergency alerts and posts them to the Telegram channel.
func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "bloodfinder-worker")
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend == "memory" {
		logger.Fatal("worker needs QUEUE_BACKEND=redis; the memory queue is drained inside the api process")
	}
	if missing := cfg.MissingKeys(config.RelayKeys); len(missing) > 0 {
		logger.Fatal("telegram relay not configured", zap.Strings("missing", missing))
	}

	redisClient, err := store.NewRedis(cfg.RedisAddr)
	if err != nil {
		logger.Fatal("redis init failed", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()
	if !redisClient.Healthy(ctx) {
		logger.Warn("redis not reachable yet; will keep polling", zap.String("addr", cfg.RedisAddr))
	}

	q := queue.NewRedisQueue(redisClient.Client, queue.DefaultKey, logger)
	tg := telegram.NewClient(cfg.TGAPIBase, cfg.TGBotToken, logger)
	worker := alert.NewWorker(alert.NewDirect(tg, cfg.TGChannelID, cfg.Branding.AppName).In(cfg.Location), logger)

	logger.Info("worker started, waiting for alerts", zap.String("queue", queue.DefaultKey))
	if err := worker.Run(ctx, q); err != nil {
		logger.Fatal("queue consume init failed", zap.Error(err))
	}
	logger.Info("worker stopped")
}
