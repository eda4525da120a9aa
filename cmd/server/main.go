package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_marketplace/internal/app"
	"github.com/Freeeeeet/tutor_marketplace/internal/calendar"
	"github.com/Freeeeeet/tutor_marketplace/internal/config"
	"github.com/Freeeeeet/tutor_marketplace/internal/controller/httpapi"
	"github.com/Freeeeeet/tutor_marketplace/internal/events"
	"github.com/Freeeeeet/tutor_marketplace/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, "server")
	defer logger.Sync()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer closeStore()

	// Занятость: Google free/busy при настроенном OAuth, иначе только ICS
	var provider calendar.BusySource
	if cfg.GoogleEnabled() {
		provider = calendar.NewGoogleSource(calendar.NewGoogleOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL))
		logger.Info("Google Calendar free/busy enabled")
	}
	resolver := calendar.NewResolver(provider, calendar.NewICSSource(calendar.NewFetcher(cfg.ICSFetchTimeout, logger)), logger)

	// События бронирований уходят в asynq, без Redis просто логируются
	var publisher service.EventPublisher
	var redisClient *redis.Client
	if cfg.RedisEnabled() {
		redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
		client := asynq.NewClient(redisOpt)
		defer client.Close()
		publisher = events.NewAsynqPublisher(client, logger)

		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer redisClient.Close()
	} else {
		logger.Warn("REDIS_ADDR is not set, booking events will not be delivered")
		publisher = events.NewNopPublisher(logger)
	}

	availabilityService := service.NewAvailabilityService(store, resolver, cfg.ClassDuration, cfg.Location(), time.Now, logger)
	ledger := service.NewLedger(store, publisher, time.Now, logger)
	bookingService := service.NewBookingService(store, logger)
	lecturerService := service.NewLecturerService(store, logger)

	scheduler, err := app.NewScheduler(cfg.SyncCron, availabilityService, service.ClampHorizon(cfg.SyncHorizonDays), logger)
	if err != nil {
		logger.Fatal("Failed to create scheduler", zap.Error(err))
	}
	scheduler.Start()

	handler := httpapi.NewHandler(httpapi.Deps{
		Lecturers:          lecturerService,
		Availability:       availabilityService,
		Ledger:             ledger,
		Bookings:           bookingService,
		Health:             app.NewHealthChecker(store, redisClient),
		DefaultLocation:    cfg.Location(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("environment", cfg.Environment),
			zap.String("store", cfg.StoreDriver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	scheduler.Stop(shutdownCtx)
}
