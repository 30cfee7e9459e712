package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	"github.com/eldtechnologies/landchat/internal/api"
	"github.com/eldtechnologies/landchat/internal/api/middleware"
	"github.com/eldtechnologies/landchat/internal/auth"
	"github.com/eldtechnologies/landchat/internal/config"
	"github.com/eldtechnologies/landchat/internal/delivery"
	"github.com/eldtechnologies/landchat/internal/handlers"
	"github.com/eldtechnologies/landchat/internal/models"
	"github.com/eldtechnologies/landchat/internal/notify"
	"github.com/eldtechnologies/landchat/internal/presence"
	"github.com/eldtechnologies/landchat/internal/store"
	"github.com/eldtechnologies/landchat/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := newLogger(cfg, os.Stdout)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Message and user store: Postgres when configured, SQLite otherwise
	var dataStore store.DataStore
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations completed")

		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		dataStore = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		dataStore = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Msg("using SQLite")
	}
	defer dataStore.Close()

	// Redis backs rate limiting and the cross-instance relay
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	// Push gateway
	var gateway notify.PushGateway
	if cfg.FirebaseCredentialsFile != "" {
		fcm, err := notify.NewFCMGateway(ctx, cfg.FirebaseCredentialsFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("firebase init failed")
		}
		gateway = fcm
		logger.Info().Msg("push notifications via FCM")
	} else {
		gateway = notify.NewLogGateway(logger)
		logger.Warn().Msg("FIREBASE_CREDENTIALS_FILE not set, push notifications are logged only")
	}
	dispatcher := notify.NewDispatcher(dataStore, gateway, cfg.PushFallbackTitle, logger)

	// Bearer token verification
	var verifier *auth.Verifier
	if cfg.TokenPublicKey != "" {
		key, err := auth.ParsePublicKey(cfg.TokenPublicKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid TOKEN_PUBLIC_KEY")
		}
		verifier = auth.NewVerifier(key)
	} else {
		logger.Warn().Msg("TOKEN_PUBLIC_KEY not set, bearer auth disabled")
	}

	// Delivery
	registry := presence.NewRegistry()
	opts := delivery.Options{
		StoreTimeout:  cfg.StoreTimeout,
		NotifyTimeout: cfg.PushTimeout,
	}
	var relay *transport.RedisRelay
	if redisStore != nil {
		relay = transport.NewRedisRelay(redisStore, logger)
		opts.Relay = relay
	}
	engine := delivery.NewEngine(dataStore, registry, dispatcher, logger, opts)

	if relay != nil {
		err := relay.Start(ctx, func(event models.ReceiveEvent) {
			engine.FanOut(event)
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("relay subscribe failed")
		}
		logger.Info().Str("instance", relay.InstanceID()).Msg("cross-instance relay started")
	}

	hub := transport.NewHub(registry, engine, logger, transport.Options{
		MessagesPerSecond: cfg.WSMessagesPerSecond,
		Burst:             cfg.WSBurst,
	})

	router := api.NewRouter(logger, api.RouterConfig{
		Handlers: handlers.Deps{
			Store:       dataStore,
			Redis:       redisStore,
			Sender:      engine,
			Registry:    registry,
			AdminUserID: cfg.AdminUserID,
			AdminRole:   cfg.AdminRole,
			Logger:      logger,
		},
		Socket:     hub,
		Verifier:   verifier,
		Redis:      redisStore,
		TrustProxy: cfg.TrustProxyHeaders,
		RateLimit: middleware.RateLimiterConfig{
			Whitelist:        cfg.RateLimitWhitelist,
			AutoBlockEnabled: cfg.AutoBlockEnabled,
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting landchat server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	// Hijacked socket connections are not closed by Shutdown.
	hub.Close()
	stop()

	// Let scheduled notifications finish before the stores close.
	done := make(chan struct{})
	go func() {
		engine.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("gave up waiting for pending notifications")
	}

	logger.Info().Msg("server stopped")
}

// newLogger writes human-readable output in development and JSON otherwise.
func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	if cfg.IsDevelopment() {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).
		With().
		Timestamp().
		Logger().
		Level(cfg.Level())
}
