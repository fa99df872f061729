package main

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/FACorreiaa/churninsight-dashboard/internal/pkg/config"
	"github.com/FACorreiaa/churninsight-dashboard/internal/server"
	"github.com/FACorreiaa/churninsight-dashboard/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.LogLevel, zap.String("service", cfg.Observability.ServiceName)); err != nil {
		return err
	}
	l := logger.Log
	defer func() { _ = l.Sync() }()

	otelShutdown, err := server.InitObservability(cfg.Observability, l)
	if err != nil {
		return err
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			l.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := server.New(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer srv.Close()

	router, err := server.SetupRouter(srv.Dependencies(), cfg.Observability.ServiceName, l)
	if err != nil {
		l.Error("Failed to setup router", zap.Error(err))
		return err
	}
	srv.SetRouter(router)

	if cfg.Observability.PprofAddr != "" {
		server.StartPprofServer(cfg.Observability.PprofAddr, l)
	}

	// Checks the session every interval and at token expiry until shutdown.
	go srv.RunMonitor(ctx)

	httpServer := srv.HTTPServer()

	done := make(chan struct{})
	go server.GracefulShutdown(ctx, httpServer, cancel, l, done)

	l.Info("Server starting",
		zap.String("addr", cfg.ListenAddr()),
		zap.String("api", cfg.API.BaseURL),
		zap.String("session_store", cfg.Session.Backend))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("Server error", zap.Error(err))
		cancel()
		<-done
		return err
	}

	<-done
	l.Info("Graceful shutdown complete")

	return nil
}
