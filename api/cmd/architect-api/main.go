package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"workflow-architect/api/internal/analysis"
	"workflow-architect/api/internal/config"
	"workflow-architect/api/internal/engine"
	"workflow-architect/api/internal/handle"
	"workflow-architect/api/internal/httpserver"
	"workflow-architect/api/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Fatal("load config", "error", err)
	}
	log := logger.New(cfg.LogLevel)

	engines := engine.FromConfig(cfg)
	svc := analysis.NewService(analysis.NewBuilder(cfg.WorkflowDomain), log)
	h := handle.New(&engines, svc, cfg.LLMEngine, cfg.MaxUploadBytes, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpserver.NewRouter(h, log),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// no WriteTimeout: a single analysis may take minutes
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("architect-api starting", "port", cfg.Port, "engine", cfg.LLMEngine)
	if err := httpserver.Serve(ctx, srv, log); err != nil {
		log.Fatal("http server", "error", err)
	}
	log.Info("architect-api stopped")
}
