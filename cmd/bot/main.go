package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"timehub_bot/internal/config"
	"timehub_bot/internal/feature/bookings"
	"timehub_bot/internal/feature/catalog"
	"timehub_bot/internal/feature/profile"
	"timehub_bot/internal/health"
	"timehub_bot/internal/logging"
	"timehub_bot/internal/metrics"
	"timehub_bot/internal/ratelimit"
	"timehub_bot/internal/store"
	"timehub_bot/internal/telegram"
)

const (
	storeOpenTimeout        = 15 * time.Second
	storeCloseTimeout       = 5 * time.Second
	redisConnectTimeout     = 5 * time.Second
	httpShutdownTimeout     = 5 * time.Second
	telegramShutdownTimeout = 10 * time.Second
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":         "startup",
		"store_backend": cfg.StoreBackend,
		"http_port":     cfg.HTTPPort,
	}).Info("configuration loaded")

	m := metrics.New()

	openCtx, cancelOpen := context.WithTimeout(context.Background(), storeOpenTimeout)
	backend, err := store.Open(openCtx, cfg, logger)
	cancelOpen()
	if err != nil {
		logger.WithError(err).Error("store setup error")
		fmt.Fprintf(os.Stderr, "store setup error: %v\n", err)
		os.Exit(1)
	}
	dataStore := store.Instrument(backend, m)

	logger.WithField("event", "store_ready").Info("data store initialized")

	limiter, redisClient := newLimiter(cfg, logger)

	dispatcher := telegram.NewDispatcher(telegram.DispatcherDeps{
		Profile:  profile.NewRegistrar(dataStore, logger),
		Catalog:  catalog.NewHandler(dataStore, catalog.PolicyFor(cfg.DeleteOwnerOnly), logger),
		Bookings: bookings.NewViewer(dataStore, logger),
		Limiter:  limiter,
		Metrics:  m,
		Logger:   logger,
	})

	tgClient, err := telegram.NewClient(cfg, dispatcher, logger)
	if err != nil {
		logger.WithError(err).Error("telegram client setup error")
		fmt.Fprintf(os.Stderr, "telegram client setup error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	httpServer := health.NewServer(cfg.HTTPPort, dataStore, m.Handler(), logger)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil {
			logger.WithField("event", "health_failed").WithError(err).Error("http server stopped unexpectedly")
		}
	}()

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telegramCtx, cancelTelegram := context.WithCancel(context.Background())
	tgDone := make(chan struct{})

	go func() {
		tgClient.Start(telegramCtx)
		close(tgDone)
	}()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping telegram polling")
	case <-tgDone:
		logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
	}

	cancelTelegram()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), telegramShutdownTimeout)
	select {
	case <-tgDone:
	case <-waitCtx.Done():
		logger.WithField("event", "telegram_shutdown_timeout").Warn("timed out waiting for telegram client to stop")
	}
	cancelWait()

	httpCtx, cancelHTTP := context.WithTimeout(context.Background(), httpShutdownTimeout)
	if err := httpServer.Shutdown(httpCtx); err != nil {
		logger.WithError(err).Error("http server shutdown error")
	}
	cancelHTTP()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.WithError(err).Warn("redis close error")
		}
	}

	closeCtx, cancelClose := context.WithTimeout(context.Background(), storeCloseTimeout)
	if err := dataStore.Close(closeCtx); err != nil {
		logger.WithError(err).Error("store close error")
	} else {
		logger.WithField("event", "store_closed").Info("data store closed")
	}
	cancelClose()

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}

// newLimiter picks the per-user throttle: disabled, shared through Redis, or
// in-process. An unreachable Redis falls back to the in-process limiter.
func newLimiter(cfg config.Config, logger *logrus.Entry) (ratelimit.Limiter, *redis.Client) {
	if !cfg.RateLimitEnabled() {
		logger.WithField("event", "rate_limit_disabled").Info("per-user rate limiting disabled")
		return ratelimit.Disabled{}, nil
	}

	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
		client, err := ratelimit.NewRedisClient(ctx, cfg.RedisAddr)
		cancel()
		if err == nil {
			window := ratelimit.WindowFor(cfg.RateLimitRPS, cfg.RateLimitBurst)
			logger.WithFields(logging.Fields{
				"event":  "rate_limit_redis",
				"limit":  cfg.RateLimitBurst,
				"window": window.String(),
			}).Info("using redis rate limiter")
			return ratelimit.NewRedis(client, cfg.RateLimitBurst, window), client
		}
		logger.WithField("event", "rate_limit_redis_unavailable").WithError(err).Warn("redis unreachable; using in-process rate limiter")
	}

	return ratelimit.NewLocal(cfg.RateLimitRPS, cfg.RateLimitBurst), nil
}
