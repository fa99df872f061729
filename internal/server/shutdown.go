package server

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ShutdownTimeout bounds how long in-flight requests may take to finish.
const ShutdownTimeout = 5 * time.Second

// GracefulShutdown waits for SIGINT/SIGTERM or for ctx to end, stops the
// session monitor through stopMonitor, then drains srv. done is closed once
// the server has stopped.
func GracefulShutdown(ctx context.Context, srv *http.Server, stopMonitor context.CancelFunc, logger *zap.Logger, done chan<- struct{}) {
	defer close(done)

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()
	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	if stopMonitor != nil {
		stopMonitor()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exiting")
}
