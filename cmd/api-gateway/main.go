package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/advising-api/api/swagger"
	"github.com/noah-isme/advising-api/internal/handler"
	"github.com/noah-isme/advising-api/internal/repository"
	"github.com/noah-isme/advising-api/internal/service"
	"github.com/noah-isme/advising-api/pkg/cache"
	"github.com/noah-isme/advising-api/pkg/config"
	"github.com/noah-isme/advising-api/pkg/logger"
	"github.com/noah-isme/advising-api/pkg/messaging"
)

// @title Advising API
// @version 1.0.0
// @description Office-hours booking between students and teachers.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	metrics := service.NewMetricsService()

	store, err := openBackend(ctx, cfg, metrics, logr)
	if err != nil {
		return err
	}
	defer store.close() //nolint:errcheck

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("schedule cache disabled: redis unavailable", zap.Error(err))
		} else {
			defer client.Close() //nolint:errcheck
			cacheRepo = repository.NewCacheRepository(client, "advising")
			store.checks["redis"] = redisPinger{client}
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cacheRepo != nil)

	clock, err := service.NewSlotClock(cfg.Slots)
	if err != nil {
		return fmt.Errorf("slot grid: %w", err)
	}

	var mailer service.Mailer = service.NewLogMailer(logr)
	if cfg.Notifications.Enabled {
		publisher, err := messaging.NewPublisher(cfg.Notifications.AMQPURL, cfg.Notifications.Queue)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer publisher.Close() //nolint:errcheck
		mailer = service.NewAMQPMailer(publisher)
	}

	validate := validator.New()
	directory := service.NewDirectoryService(store.users, logr)
	notifications := service.NewNotificationService(directory, mailer, metrics, service.NotificationOptions{
		Workers:    cfg.Notifications.Workers,
		Retries:    cfg.Notifications.Retries,
		RetryDelay: cfg.Notifications.RetryDelay,
		SiteName:   cfg.Notifications.SiteName,
	}, logr)
	notifications.Start(context.WithoutCancel(ctx))
	defer notifications.Stop()

	schedule := service.NewScheduleService(store.entries, clock, directory, cacheSvc, logr)
	availability := service.NewAvailabilityService(store.ledger, store.entries, directory, clock, notifications, schedule, validate, logr)
	bookings := service.NewBookingService(store.ledger, store.bookings, directory, notifications, schedule, metrics, validate, logr)
	calendar := service.NewCalendarService(store.bookings, directory, logr)
	exports := service.NewExportService(store.entries, directory, logr)
	auth := service.NewAuthService(service.AuthConfig{Secret: cfg.JWT.Secret, Expiry: cfg.JWT.Expiration, Issuer: "advising-api"}, logr)

	router := newRouter(cfg, logr, routeDeps{
		auth:         auth,
		metrics:      metrics,
		availability: handler.NewAvailabilityHandler(availability),
		schedule:     handler.NewScheduleHandler(schedule),
		bookings:     handler.NewBookingHandler(bookings, calendar),
		agenda:       handler.NewAgendaHandler(exports),
		ops:          handler.NewMetricsHandler(metrics, store.checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("ledger", cfg.Ledger.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
