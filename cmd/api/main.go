package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/humaninbinary-alt/TahlilchiAI/internal/adapters/http"
	"github.com/humaninbinary-alt/TahlilchiAI/internal/bootstrap"
	"github.com/humaninbinary-alt/TahlilchiAI/internal/config"
	"github.com/humaninbinary-alt/TahlilchiAI/internal/observability/logging"
	"github.com/humaninbinary-alt/TahlilchiAI/internal/observability/metrics"
)

const serviceName = "tahlilchi-api"

func main() {
	cfg := config.Load()
	logger := logging.NewLogger(serviceName, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		app.Close(closeCtx)
	}()

	serverMetrics := metrics.NewHTTPServerMetrics(serviceName)
	router := httpadapter.NewRouter(app.Assistant, app.Indexer, logger, httpadapter.RouterOptions{
		Service:        serviceName,
		RateLimitRPS:   cfg.RateLimitPerSecond,
		RateLimitBurst: cfg.RateLimitBurst,
		MaxInFlight:    cfg.HTTPMaxInFlight,
		Metrics:        serverMetrics,
		Conversations:  app.Conversations,
	})

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown error", "error", err)
	}
}
