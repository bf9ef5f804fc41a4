package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/LavaJover/keksswap-rate-service/internal/app/setup"
	"github.com/LavaJover/keksswap-rate-service/internal/config"
	"github.com/LavaJover/keksswap-rate-service/internal/infrastructure/logger"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("failed to load .env")
	}
	// Reading config
	cfg := config.MustLoad()

	logg := logger.New(cfg.LogConfig)
	slog.SetDefault(logg)

	deps, err := setup.InitializeDependencies(cfg, logg)
	if err != nil {
		logg.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}

	server := setup.NewHTTPServer(cfg.HTTPServer, deps.Router)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps.Tasks.StartAll()

	serverErr := make(chan error, 1)
	go func() {
		logg.Info("rate service started",
			"addr", server.Addr,
			"env", cfg.Env,
			"upstream", cfg.Upstream.BaseURL,
			"kafka", cfg.Kafka.Enabled,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logg.Info("shutting down")
	case err := <-serverErr:
		if err != nil {
			logg.Error("http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error("http server shutdown failed", "error", err)
	}
	deps.Tasks.Stop(shutdownCtx)
	if err := deps.Close(); err != nil {
		logg.Error("failed to release dependencies", "error", err)
	}
	logg.Info("rate service stopped")
}
