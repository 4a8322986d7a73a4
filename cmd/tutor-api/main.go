package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/physical-ai/tutor-api/internal/config"
	"github.com/physical-ai/tutor-api/internal/db"
	dbRedis "github.com/physical-ai/tutor-api/internal/db/redis"
	"github.com/physical-ai/tutor-api/internal/domain"
	logpkg "github.com/physical-ai/tutor-api/internal/logger"
	"github.com/physical-ai/tutor-api/internal/metrics"
	"github.com/physical-ai/tutor-api/internal/ratelimit"
	"github.com/physical-ai/tutor-api/internal/repository/embcache"
	"github.com/physical-ai/tutor-api/internal/repository/history"
	qdrantrepo "github.com/physical-ai/tutor-api/internal/repository/qdrant"
	chiTransport "github.com/physical-ai/tutor-api/internal/transport/chi"
	openaiTransport "github.com/physical-ai/tutor-api/internal/transport/openai"
	chatuc "github.com/physical-ai/tutor-api/internal/usecase/chat"
	healthuc "github.com/physical-ai/tutor-api/internal/usecase/health"
	translateuc "github.com/physical-ai/tutor-api/internal/usecase/translate"
	"github.com/physical-ai/tutor-api/internal/version"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting tutor API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("qdrant_host", cfg.Qdrant.Host),
		zap.String("collection", cfg.Qdrant.Collection),
	)

	ctx := context.Background()

	// Postgres: profiles and chat history
	histStore, err := history.NewStore(ctx, cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer histStore.Close()

	if err := histStore.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to ensure database schema", zap.Error(err))
	}
	logger.Info("Connected to Postgres")

	// Redis: optional embedding cache
	var cacheStore db.Store
	if len(cfg.Cache.Addrs) > 0 {
		cacheStore, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer cacheStore.Close()

		if err := cacheStore.WaitForReady(ctx, 30*time.Second); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		logger.Info("Connected to Redis cache")
	}

	// Qdrant: textbook chunk index
	vecStore, err := qdrantrepo.NewStore(&qdrantrepo.Config{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		APIKey:     cfg.Qdrant.APIKey,
		UseTLS:     cfg.Qdrant.UseTLS,
		Collection: cfg.Qdrant.Collection,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("Failed to create Qdrant store", zap.Error(err))
	}
	defer func() { _ = vecStore.Close() }()

	if cfg.Qdrant.ReadinessCheck {
		if err := vecStore.WaitForReady(ctx, time.Duration(cfg.Qdrant.TimeoutSec)*time.Second); err != nil {
			logger.Fatal("Qdrant not ready", zap.Error(err))
		}
		if err := vecStore.EnsureCollection(ctx); err != nil {
			logger.Fatal("Failed to ensure collection", zap.Error(err))
		}
	}
	logger.Info("Connected to Qdrant")

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterRAGMetrics()

	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})
	queryEmbedder := buildEmbedder(cfg, baseEmbedder, cfg.Embedding.QueryInstruction, cacheStore, logger)
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:      cfg.Generation.APIKey,
		BaseURL:     cfg.Generation.BaseURL,
		Model:       cfg.Generation.Model,
		Temperature: cfg.Generation.Temperature,
		Logger:      logger,
	})

	// Sliding-window rate limiter with background reclamation
	limiter := ratelimit.New(ratelimit.Config{
		MaxRequests:     cfg.RateLimit.MaxRequests,
		Window:          time.Duration(cfg.RateLimit.WindowSec) * time.Second,
		Retention:       time.Duration(cfg.RateLimit.RetentionSec) * time.Second,
		ReclaimInterval: time.Duration(cfg.RateLimit.ReclaimIntervalSec) * time.Second,
	}, logger)

	limiterCtx, stopLimiter := context.WithCancel(ctx)
	defer stopLimiter()
	go limiter.Run(limiterCtx)

	chatSvc := chatuc.New(
		queryEmbedder, vecStore, generator, histStore, histStore,
		cfg.Qdrant.SearchTopK,
		chatuc.Timeouts{
			Embed:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
			Search:   time.Duration(cfg.Qdrant.TimeoutSec) * time.Second,
			Generate: time.Duration(cfg.Generation.TimeoutSec) * time.Second,
		},
		logger,
	)
	translateSvc := translateuc.New(generator, logger)

	healthSvc := healthuc.New(histStore, vecStore, baseEmbedder)

	server := chiTransport.NewServer(chatSvc, translateSvc, healthSvc, limiter, cfg.Auth.APIKeys, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instruction.
func buildEmbedder(
	cfg config.Config,
	base domain.Embedder,
	instruction string,
	cacheStore db.Store,
	logger *zap.Logger,
) domain.Embedder {
	embedder := base
	if cacheStore != nil {
		ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
		embedder = embcache.New(base, cacheStore, ttl, metrics.EmbeddingCacheTotal, logger)
	}

	// Instruction prefix goes outermost so the cache key includes it.
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}

	return embedder
}
