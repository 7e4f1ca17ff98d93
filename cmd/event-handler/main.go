package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"loan-underwriting-orchestrator/internal/config"
	"loan-underwriting-orchestrator/internal/events"
	"loan-underwriting-orchestrator/internal/logger"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	minioClient, err := storage.NewMinioClient(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		log.Fatal("create minio client", zap.Error(err))
	}
	setupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	intake, err := storage.NewMinioStore(setupCtx, minioClient, cfg.MinioIntakeBucket)
	cancel()
	if err != nil {
		log.Fatal("open intake bucket", zap.Error(err))
	}

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    logger.NewTemporalAdapter(log.Named("temporal")),
	})
	if err != nil {
		log.Fatal("connect temporal", zap.Error(err))
	}
	defer temporalClient.Close()

	handler := &events.IntakeHandler{
		Objects: intake,
		Starter: appTemporal.NewClient(temporalClient, cfg.TemporalTaskQueue, cfg.WorkflowIDPrefix, cfg.ActivityCeiling),
		Logger:  log.Named("intake"),
	}
	source := events.NewMinioIntakeEventSource(minioClient, cfg.MinioIntakeBucket)

	log.Info("event-handler listening for application objects", zap.String("bucket", cfg.MinioIntakeBucket))
	err = source.Run(ctx, func(parent context.Context, ev events.IntakeEvent) error {
		startCtx, cancel := context.WithTimeout(parent, 15*time.Second)
		defer cancel()
		return handler.Handle(startCtx, ev)
	})
	if err != nil {
		log.Fatal("event-handler stopped with error", zap.Error(err))
	}
}
