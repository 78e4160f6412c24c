package server

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// GracefulShutdown waits for SIGINT or SIGTERM, then stops srv and the
// auxiliary servers and finally runs onStop.
func GracefulShutdown(srv *http.Server, logger *zap.Logger, done chan bool, onStop func(), aux ...*http.Server) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info("Shutting down gracefully, press Ctrl+C again to force")

	stop() // Allow Ctrl+C to force shutdown

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	for _, s := range aux {
		if s == nil {
			continue
		}
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Auxiliary server forced to shutdown", zap.String("addr", s.Addr), zap.Error(err))
		}
	}
	if onStop != nil {
		onStop()
	}

	logger.Info("Server exiting")

	done <- true
}
