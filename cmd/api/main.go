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

	"github.com/sirupsen/logrus"

	"puzzle-server/internal/server"
)

func gracefulShutdown(ctx context.Context, srv *server.Server, httpServer *http.Server, done chan bool) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logrus.Info("Shutdown signal received, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("HTTP server forced to shutdown with error: %v", err)
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Error during server shutdown: %v", err)
	}

	done <- true
}

func run(ctx context.Context, cfg *server.Config) error {
	srv, httpServer, err := server.New(ctx, *cfg)
	if err != nil {
		return err
	}

	done := make(chan bool, 1)
	go gracefulShutdown(ctx, srv, httpServer, done)

	logrus.Infof("Listening on %s", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	<-done
	logrus.Info("Graceful shutdown complete")
	return nil
}

func main() {
	cfg := &server.Config{}
	if err := newCmd(cfg).Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
