package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"loan-underwriting-orchestrator/internal/api"
	"loan-underwriting-orchestrator/internal/config"
	"loan-underwriting-orchestrator/internal/logger"
	"loan-underwriting-orchestrator/internal/notify"
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		log.Fatal("postgres ping", zap.Error(err))
	}

	notifier, err := notify.NewFromRegion(ctx, cfg.AWSRegion, cfg.NotifySender, log.Named("notify"))
	if err != nil {
		log.Fatal("create notifier", zap.Error(err))
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

	orchestrator := appTemporal.NewClient(temporalClient, cfg.TemporalTaskQueue, cfg.WorkflowIDPrefix, cfg.ActivityCeiling)
	h := api.NewHandler(orchestrator, store, notifier, log.Named("api"))
	router := api.NewRouter(h)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("api listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}
}
