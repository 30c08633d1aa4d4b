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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/cartoncaps-assistant/internal/api/router"
	"github.com/wolfman30/cartoncaps-assistant/internal/app/bootstrap"
	appconfig "github.com/wolfman30/cartoncaps-assistant/internal/config"
	"github.com/wolfman30/cartoncaps-assistant/internal/conversation"
	"github.com/wolfman30/cartoncaps-assistant/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	logger.Info("starting carton caps assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	chat, err := bootstrap.BuildChat(ctx, cfg, prometheus.DefaultRegisterer, logger)
	if err != nil {
		logger.Error("failed to build chat service", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := chat.Close(); err != nil {
			logger.Warn("failed to release resources", "error", err)
		}
	}()

	srv := newServer(cfg, buildRouter(cfg, chat, promhttp.Handler(), logger))

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "llm_provider", chat.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		logger.Error("server error", "error", err)
		return
	}

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func buildRouter(cfg *appconfig.Config, chat *bootstrap.Chat, metricsHandler http.Handler, logger *logging.Logger) http.Handler {
	return router.New(&router.Config{
		Logger:             logger,
		ChatHandler:        conversation.NewHandler(chat.Service, logger),
		ChatWebSocket:      conversation.NewWSHandler(chat.Service, cfg.CORSAllowedOrigins, logger),
		AdminHandler:       conversation.NewAdminHandler(chat.Repository, chat.Repository, chat.Sessions, logger),
		AdminJWTSecret:     cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		StaticDir:          cfg.StaticDir,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	})
}

// newServer sizes the write timeout to cover a full model call.
func newServer(cfg *appconfig.Config, handler http.Handler) *http.Server {
	writeTimeout := 15 * time.Second
	if cfg.LLMTimeout > 0 {
		writeTimeout += cfg.LLMTimeout
	} else {
		writeTimeout = 0
	}
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
}
