package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/micro-ha/imou-ptz/addon/internal/config"
	"github.com/micro-ha/imou-ptz/addon/internal/events"
	httpapi "github.com/micro-ha/imou-ptz/addon/internal/http"
	"github.com/micro-ha/imou-ptz/addon/internal/http/handlers"
	"github.com/micro-ha/imou-ptz/addon/internal/imou"
	"github.com/micro-ha/imou-ptz/addon/internal/logging"
	"github.com/micro-ha/imou-ptz/addon/internal/poller"
	"github.com/micro-ha/imou-ptz/addon/internal/service"
	"github.com/micro-ha/imou-ptz/addon/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.AppID == "" || cfg.AppSecret == "" {
		logger.Error("IMOU_APP_ID and IMOU_APP_SECRET must be set")
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DBDir(), 0o755); err != nil {
		logger.Error("failed to create db directory", "err", err)
		os.Exit(1)
	}

	repo, err := storage.New(ctx, cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to initialize storage", "err", err)
		os.Exit(1)
	}
	defer repo.Close()

	apiClient := imou.NewClient(cfg.APIBaseURL, cfg.AppID, cfg.AppSecret, logger)
	apiClient.SetTimeout(cfg.APITimeout)

	hub := events.NewHub(logger)
	svc := service.New(apiClient, repo, hub, logger, cfg.WaitAfterWakeup)
	svc.SetWaitBeforeDownload(cfg.WaitBeforeDownload)

	if count, err := svc.Discover(ctx); err != nil {
		// the process stays up; discovery retries via POST /api/discover
		logger.Warn("initial discovery failed", "err", err)
	} else {
		logger.Info("initial discovery completed", "channels", count)
	}

	channelPoller := poller.New(svc, cfg.PollInterval, logger)
	go channelPoller.Run(ctx)
	channelPoller.TriggerRefresh()

	api := handlers.New(svc, channelPoller, hub, logger, cfg.PTZDurationMs)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(api),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("server starting", "addr", httpServer.Addr)
	if err := httpapi.RunServer(ctx, httpServer); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated with error", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
