package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sqlsage/sqlsage/internal/api"
	"github.com/sqlsage/sqlsage/internal/auth"
	"github.com/sqlsage/sqlsage/internal/cache"
	"github.com/sqlsage/sqlsage/internal/config"
	"github.com/sqlsage/sqlsage/internal/llm"
	"github.com/sqlsage/sqlsage/internal/nlsql"
	"github.com/sqlsage/sqlsage/internal/observability"
	"github.com/sqlsage/sqlsage/internal/refresh"
	"github.com/sqlsage/sqlsage/internal/schema"
	"github.com/sqlsage/sqlsage/internal/storage"
	localstore "github.com/sqlsage/sqlsage/internal/storage/local"
	s3store "github.com/sqlsage/sqlsage/internal/storage/s3"
	"github.com/sqlsage/sqlsage/internal/warehouse"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("sqlsage-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	store, err := newSnapshotStore(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to initialize snapshot store", slog.Any("error", err))
		os.Exit(1)
	}

	schemaCache := schema.NewCache(&schema.Loader{
		Store:        store,
		DatabasesKey: cfg.Snapshot.DatabasesKey,
		SchemasKey:   cfg.Snapshot.SchemasKey,
		Logger:       logger,
	})
	loaded := schemaCache.Reload(context.Background())
	logger.Info("schema cache loaded", slog.Int("databases", loaded))

	client, err := llm.NewHTTPClient(llm.Config{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize generation client", slog.Any("error", err))
		os.Exit(1)
	}

	translator := &nlsql.Translator{
		Client:      client,
		Temperature: cfg.AI.SQLTemperature,
		MaxTokens:   cfg.AI.SQLMaxTokens,
	}
	if cfg.Cache.RedisAddr != "" {
		redisCache, err := cache.NewRedis(context.Background(), cache.Config{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			TTL:      cfg.Cache.TTL,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = redisCache.Close() }()
		translator.Cache = redisCache
	}

	executor, err := warehouse.NewConnector(warehouse.Config{
		Driver:         cfg.Warehouse.Driver,
		DSN:            cfg.Warehouse.DSN,
		SelectDatabase: cfg.Warehouse.SelectDatabase,
	})
	if err != nil {
		logger.Error("failed to initialize warehouse connector", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:     logger,
		Schema:     schemaCache,
		Translator: translator,
		Executor:   executor,
		Insights: &nlsql.Insights{
			Client:      client,
			Temperature: cfg.AI.InsightTemperature,
			MaxTokens:   cfg.AI.InsightMaxTokens,
		},
		Refresh: &refresh.Runner{
			Command: cfg.Refresh.Command,
			Timeout: cfg.Refresh.Timeout,
			Logger:  logger,
		},
		Readiness: api.CombineReadinessChecks(
			api.CheckAIConfig(cfg),
			api.CheckSnapshotConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func newSnapshotStore(ctx context.Context, cfg config.Config) (storage.ObjectStore, error) {
	if cfg.Snapshot.Backend == "s3" {
		return s3store.New(ctx, s3store.Config{
			Endpoint:         cfg.Snapshot.S3Endpoint,
			Region:           cfg.Snapshot.S3Region,
			Bucket:           cfg.Snapshot.S3Bucket,
			AccessKeyID:      cfg.Snapshot.S3AccessKey,
			SecretAccessKey:  cfg.Snapshot.S3SecretKey,
			UseSSL:           cfg.Snapshot.S3UseSSL,
			Prefix:           cfg.Snapshot.S3Prefix,
			AutoCreateBucket: cfg.Snapshot.S3AutoCreate,
		})
	}
	return localstore.New(cfg.Snapshot.Dir)
}
