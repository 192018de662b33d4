// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"insight-harvest/internal/config"
	"insight-harvest/internal/domain/model"
	"insight-harvest/internal/domain/ports/adapter"
	"insight-harvest/internal/domain/ports/repository"
	aiAdapters "insight-harvest/internal/infra/adapters/ai"
	"insight-harvest/internal/infra/logging"
	"insight-harvest/internal/infra/memstore"
	"insight-harvest/internal/infra/metrics"
	red "insight-harvest/internal/infra/redis"
	"insight-harvest/internal/infra/store"
	"insight-harvest/internal/infra/web"
	"insight-harvest/internal/infra/webhook"
	"insight-harvest/internal/infra/worker"
	"insight-harvest/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Store ----
	mem := memstore.NewBackend()
	mem.StartSweep(ctx, time.Minute)

	var backend repository.Backend = mem
	if cfg.Redis.URL != "" {
		client := red.NewClient(&cfg.Redis)
		defer client.Close()
		primary := red.NewBackend(client)
		if err := primary.Ping(ctx); err != nil {
			// Not fatal: the fallback wrapper degrades at call time.
			logger.Warn().Err(err).Msg("redis not reachable at startup")
		}
		backend = store.NewFallbackBackend(primary, mem, logger)
		logger.Info().Str("url", cfg.Redis.URL).Msg("store: redis with in-memory fallback")
	} else {
		logger.Warn().Msg("store: no redis configured, records will not survive restarts")
	}
	repo := store.NewTaskRepo(backend, cfg.Retention)

	// ---- Inference provider ----
	var provider adapter.InferenceProvider
	switch cfg.Inference.Provider {
	case "ollama":
		provider, err = aiAdapters.NewOllamaAdapter(cfg.Inference.OllamaURL, cfg.Inference.DefaultModel)
	case "openai":
		provider, err = aiAdapters.NewOpenAIAdapter(cfg.Inference.OpenAIKey, cfg.Inference.DefaultModel)
	case "gemini":
		provider, err = aiAdapters.NewGeminiAdapter(ctx, cfg.Inference.GeminiKey, cfg.Inference.DefaultModel)
	case "noop":
		provider = aiAdapters.NewNoopAdapter()
	default:
		log.Fatalf("unknown inference provider %q (want ollama|openai|gemini|noop)", cfg.Inference.Provider)
	}
	if err != nil {
		log.Fatalf("inference provider %s: %v", cfg.Inference.Provider, err)
	}
	provider = aiAdapters.NewLimitedProvider(provider, cfg.Inference.ConcurrentLimit)
	logger.Info().Str("provider", provider.Name()).Str("model", cfg.Inference.DefaultModel).Msg("inference provider configured")
	invoker := aiAdapters.NewInvoker(provider, logger)

	// ---- Workers & dispatcher ----
	pool := worker.NewPool(cfg.Worker.Workers, cfg.Worker.QueueSize, logger)
	pool.Start(ctx)
	defer pool.Stop()

	dispatcher := webhook.NewDispatcher(cfg.Webhook.Attempts, cfg.Webhook.BackoffBase, cfg.Webhook.Timeout, logger)

	// ---- Lifecycle manager ----
	taskUC := usecase.NewTaskUseCase(repo, invoker, pool, dispatcher, usecase.Options{
		Limits: model.Limits{
			MaxSourceChars: cfg.Limits.MaxSourceChars,
			MaxQueryChars:  cfg.Limits.MaxQueryChars,
		},
		MaxBatch:       cfg.Limits.MaxBatch,
		DefaultList:    cfg.Limits.DefaultList,
		MaxList:        cfg.Limits.MaxList,
		DefaultModel:   cfg.Inference.DefaultModel,
		DefaultTimeout: cfg.Inference.DefaultTimeout,
		MinTimeout:     cfg.Inference.MinTimeout,
		MaxTimeout:     cfg.Inference.MaxTimeout,
		RecoveryGrace:  cfg.RecoveryGrace,
	}, logger)

	if n, err := taskUC.RecoverStale(ctx); err != nil {
		logger.Error().Err(err).Msg("stale task recovery failed")
	} else if n > 0 {
		logger.Info().Int("count", n).Msg("stale task recovery done")
	}

	// ---- HTTP ----
	server := web.NewServer(cfg.Server.Port, taskUC, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("http server failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
