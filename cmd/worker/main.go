package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_marketplace/internal/app"
	"github.com/Freeeeeet/tutor_marketplace/internal/config"
	"github.com/Freeeeeet/tutor_marketplace/internal/events"
	"github.com/Freeeeeet/tutor_marketplace/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, "worker")
	defer logger.Sync()

	if err := cfg.ValidateWorker(); err != nil {
		logger.Fatal("Invalid worker configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer closeStore()

	// Бот только отправляет сообщения, обновления не читаем
	b, err := bot.New(cfg.TelegramToken, bot.WithSkipGetMe())
	if err != nil {
		logger.Fatal("Failed to create telegram bot", zap.Error(err))
	}

	handler := events.NewHandler(store, notify.NewTelegramNotifier(b, logger), logger)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: 10,
			Queues:      map[string]int{events.QueueNotifications: 1},
			Logger:      logger.Sugar(),
		},
	)

	logger.Info("Starting booking event worker", zap.String("queue", events.QueueNotifications))
	if err := srv.Start(events.NewServeMux(handler)); err != nil {
		logger.Fatal("Failed to start worker", zap.Error(err))
	}

	<-ctx.Done()
	logger.Info("Shutting down worker")
	srv.Shutdown()
}
