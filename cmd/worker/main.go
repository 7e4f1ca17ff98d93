package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"loan-underwriting-orchestrator/internal/assessment"
	"loan-underwriting-orchestrator/internal/config"
	"loan-underwriting-orchestrator/internal/logger"
	"loan-underwriting-orchestrator/internal/openai"
	"loan-underwriting-orchestrator/internal/providers"
	"loan-underwriting-orchestrator/internal/storage"
	appTemporal "loan-underwriting-orchestrator/internal/temporal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	store, err := storage.NewPostgresStore(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	activities := &appTemporal.Activities{
		Providers: providers.NewHTTPClient(cfg.ProviderBaseURL, cfg.ProviderTimeout),
		Store:     store,
	}

	if cfg.RedisAddr != "" {
		cache := storage.NewResultCache(storage.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), cfg.CacheTTL)
		if err := cache.Ping(ctx); err != nil {
			log.Warn("redis unavailable, provider results will not be cached", zap.Error(err))
		} else {
			activities.Cache = cache
		}
	}

	minioClient, err := storage.NewMinioClient(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		log.Fatal("create minio client", zap.Error(err))
	}
	archive, err := storage.NewMinioStore(ctx, minioClient, cfg.MinioArchiveBucket)
	if err != nil {
		log.Warn("archive bucket unavailable, records will not be archived", zap.Error(err))
	} else {
		activities.Archive = archive
	}

	var narrator assessment.Narrator
	if cfg.OpenAIAPIKey != "" {
		llm := openai.NewHTTPClient(openai.Options{
			APIKey:   cfg.OpenAIAPIKey,
			Model:    cfg.OpenAIModel,
			Timeout:  time.Duration(cfg.OpenAITimeoutSec) * time.Second,
			MaxRetry: cfg.OpenAIMaxRetry,
		})
		narrator = openai.NewNarrator(llm, cfg.OpenAIModel)
	} else {
		log.Info("OPENAI_API_KEY not set, using static rationales")
	}
	activities.Assessor = assessment.New(narrator, log.Named("assessment"))

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    logger.NewTemporalAdapter(log.Named("temporal")),
	})
	if err != nil {
		log.Fatal("connect temporal", zap.Error(err))
	}
	defer temporalClient.Close()

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics listener failed", zap.Error(err))
		}
	}()
	defer func() { _ = metricsSrv.Close() }()

	w := worker.New(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	appTemporal.Register(w, activities)

	log.Info("worker running", zap.String("task_queue", cfg.TemporalTaskQueue), zap.String("metrics_port", cfg.MetricsPort))
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal("worker stopped with error", zap.Error(err))
	}
}
