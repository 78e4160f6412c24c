package main

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-planner/internal/pkg/config"
	"github.com/FACorreiaa/loci-planner/internal/pkg/logger"
	"github.com/FACorreiaa/loci-planner/internal/server"
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

	if err := logger.Init(logger.ParseLevel(cfg.Observability.LogLevel),
		zap.String("service", cfg.Observability.ServiceName)); err != nil {
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

	srv, err := server.New(cfg, l)
	if err != nil {
		return err
	}

	router := server.SetupRouter(cfg, srv.App(), l)
	if err := server.SetupAssets(router); err != nil {
		l.Error("Failed to setup assets", zap.Error(err))
		return err
	}
	srv.SetRouter(router)

	// pprof stays on its own port, not exposed publicly
	pprofServer := server.StartPprofServer(cfg.Observability.PprofAddr, l)

	httpServer := srv.HTTPServer()

	done := make(chan bool, 1)
	go server.GracefulShutdown(httpServer, l, done, srv.Close, pprofServer)

	l.Info("Server starting", zap.String("port", cfg.ServerPort))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("Server error", zap.Error(err))
		srv.Close()
		return err
	}

	<-done
	l.Info("Graceful shutdown complete")

	return nil
}
