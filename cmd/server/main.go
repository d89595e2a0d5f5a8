// Command server runs the authoritative American Mah Jongg game
// coordination service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thetrev68/american-mahjong-server/internal/cache"
	"github.com/thetrev68/american-mahjong-server/internal/config"
	"github.com/thetrev68/american-mahjong-server/internal/database"
	"github.com/thetrev68/american-mahjong-server/internal/patterns"
	"github.com/thetrev68/american-mahjong-server/internal/room"
	"github.com/thetrev68/american-mahjong-server/internal/ws"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}

	cfg := config.Load(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RedisAddr != "" {
		if err := cache.Init(ctx, cfg.RedisAddr); err != nil {
			logger.WithError(err).Warn("redis unavailable, action history disabled")
		} else {
			logger.WithField("addr", cfg.RedisAddr).Info("redis action historian enabled")
		}
	}
	if cfg.PostgresDSN != "" {
		if err := database.Init(ctx, cfg.PostgresDSN); err != nil {
			logger.WithError(err).Warn("postgres unavailable, result persistence disabled")
		} else {
			defer database.Close()
			logger.Info("postgres result persistence enabled")
		}
	}

	// Room state itself is held in process memory only: a server restart
	// loses in-flight games.
	logger.Info("game state is in-memory; restarts drop live rooms")

	registry := room.NewRegistry(patterns.NewStaticValidator(), logger)
	registry.SetPhaseTimeLimits(cfg.CharlestonTimeLimit, cfg.PlayingTimeLimit)
	server := ws.NewServer(cfg, registry, logger)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.RegisterRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.ListenAddr).Info("server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown failed")
	}
	logger.Info("server stopped")
}
