package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"learnai/internal/app"
	"learnai/internal/config"
	"learnai/internal/server"
	"learnai/internal/util"
	"learnai/pkg/ai"
	"learnai/pkg/storage"
	"learnai/pkg/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		util.Fatal("failed to load .env", err)
	}
	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		util.Fatal("failed to load config", err)
	}
	logger := util.InitLogger(cfg.LogLevel, "learnai")

	if err := run(cfg, logger); err != nil {
		util.Fatal("server failed", err)
	}
}

func run(cfg config.FileConfig, logger *slog.Logger) error {
	svc, err := newService(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("failed to release resources", "err", err)
		}
	}()

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           svc.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr, "llm_provider", cfg.LLMProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
	logger.Info("server stopped")

	select {
	case err := <-serveErr:
		return err
	default:
		return nil
	}
}

// service is the wired HTTP handler plus the connections it owns.
type service struct {
	handler http.Handler
	closers []func() error
}

// Close releases owned connections in reverse order of acquisition.
func (s *service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// newService builds every collaborator from cfg. On failure anything already
// opened is closed before returning.
func newService(cfg config.FileConfig, logger *slog.Logger) (_ *service, err error) {
	svc := &service{}
	defer func() {
		if err != nil {
			if closeErr := svc.Close(); closeErr != nil {
				logger.Error("failed to release resources", "err", closeErr)
			}
		}
	}()

	var dataStore store.Store
	if cfg.DatabaseURL != "" {
		gormStore, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		svc.closers = append(svc.closers, gormStore.Close)
		dataStore = gormStore
	} else {
		logger.Warn("databaseURL not set, using in-memory store")
		dataStore = store.NewMemoryStore()
	}

	var redisClient *redis.Client
	var revoker store.TokenRevoker = store.NewMemoryTokenRevoker()
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		svc.closers = append(svc.closers, redisClient.Close)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return nil, fmt.Errorf("reach redis: %w", err)
		}
		revoker = store.NewRedisTokenRevoker(redisClient)
	}

	tokens, err := store.NewJWTTokenStore(cfg.JWTSecret, cfg.SessionTTLDuration, revoker, store.JWTOptions{
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})
	if err != nil {
		return nil, fmt.Errorf("init token store: %w", err)
	}

	generator, err := ai.NewChatGenerator(ai.Config{
		Provider:  cfg.LLMProvider,
		BaseURL:   cfg.LLMBaseURL,
		APIKey:    cfg.LLMAPIKey,
		Model:     cfg.LLMModel,
		MaxTokens: cfg.LLMMaxTokens,
		Timeout:   cfg.LLMTimeoutDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("init chat generator: %w", err)
	}

	var objects storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		minioStore, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		objects = minioStore
	}

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("invalid trustedProxyCidrs: %w", err)
	}

	appCore, err := app.New(app.Config{
		Store:     dataStore,
		Tokens:    tokens,
		Generator: generator,
		Objects:   objects,
	})
	if err != nil {
		return nil, fmt.Errorf("init app: %w", err)
	}

	httpServer, err := server.New(server.Config{
		App:                      appCore,
		Redis:                    redisClient,
		TrustedProxies:           trusted,
		AllowedOrigins:           cfg.AllowedOrigins,
		SignupRateLimitPerMinute: cfg.SignupRateLimitPerMinute,
		LoginRateLimitPerMinute:  cfg.LoginRateLimitPerMinute,
		ChatRateLimitPerMinute:   cfg.ChatRateLimitPerMinute,
	})
	if err != nil {
		return nil, fmt.Errorf("init server: %w", err)
	}
	svc.handler = httpServer.Router()
	return svc, nil
}
