package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"dardasha/internal/app"
	"dardasha/internal/config"
	"dardasha/internal/ratelimit"
	"dardasha/internal/server"
	"dardasha/internal/util"
	"dardasha/pkg/notify"
	"dardasha/pkg/storage"
	"dardasha/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	util.InitLogger(cfg.LogLevel)

	var dataStore store.Store
	if cfg.DatabaseURL != "" {
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to init postgres store: %v", err)
		}
	} else {
		slog.Warn("no databaseURL configured, using in-memory store")
		dataStore = store.NewMemoryStore()
	}

	var revoker store.TokenRevoker
	if cfg.RedisAddr != "" {
		revoker = store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
	} else {
		revoker = store.NewMemoryTokenRevoker()
	}
	sessions, err := store.NewJWTSessionStore(cfg.JWTSecret, sessionTTL, revoker)
	if err != nil {
		log.Fatalf("failed to init session store: %v", err)
	}

	notifier, err := buildNotifier(cfg)
	if err != nil {
		log.Fatalf("failed to init notifier: %v", err)
	}

	var avatars storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		avatars, err = storage.NewMinioStore(
			cfg.MinioEndpoint,
			cfg.MinioAccessKey,
			cfg.MinioSecretKey,
			cfg.MinioBucket,
			cfg.MinioPublicBaseURL,
			cfg.MinioUseSSL,
		)
		if err != nil {
			log.Fatalf("failed to init object store: %v", err)
		}
	} else {
		slog.Warn("no minioEndpoint configured, avatar upload disabled")
	}

	appCore, err := app.New(app.Config{
		Store:    dataStore,
		Sessions: sessions,
		Notifier: notifier,
		Avatars:  avatars,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	var authLimiter *ratelimit.FixedWindowLimiter
	if cfg.AuthRateLimitPerMinute > 0 && cfg.RedisAddr != "" {
		authLimiter, err = ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr,
			cfg.RedisPassword,
			cfg.AuthRateLimitPerMinute,
			time.Minute,
		)
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
	}

	httpServer := server.New(server.Config{
		App:         appCore,
		AuthLimiter: authLimiter,
		TrustProxy:  cfg.TrustProxy,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:        addr,
		Handler:     httpServer.Router(),
		ReadTimeout: 15 * time.Second,
		// No write timeout: /realtime/messages holds the response open.
		IdleTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("dardasha server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		slog.Error("server error", "err", err)
	}
}

func buildNotifier(cfg config.FileConfig) (notify.Notifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.NotifierDriver)) {
	case "amqp":
		return notify.NewAMQPNotifier(cfg.AMQPURL)
	case "redis":
		return notify.NewRedisNotifier(cfg.RedisAddr, cfg.RedisPassword)
	case "memory":
		return notify.NewMemoryNotifier(), nil
	default:
		if cfg.RedisAddr != "" {
			return notify.NewRedisNotifier(cfg.RedisAddr, cfg.RedisPassword)
		}
		slog.Warn("no redisAddr configured, using in-process notifier")
		return notify.NewMemoryNotifier(), nil
	}
}
