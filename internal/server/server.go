package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-planner/internal/pkg/config"
	"github.com/FACorreiaa/loci-planner/internal/routes"
)

// Server holds the dependencies for the HTTP server
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	app    *routes.App
	router http.Handler
}

// New creates a new Server instance with all dependencies
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	app, err := routes.NewApp(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		app:    app,
	}, nil
}

// HTTPServer creates and configures the HTTP server
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              ":" + s.cfg.ServerPort,
		Handler:           s.router,
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// list and search calls can take up to the backend timeout
		WriteTimeout: s.cfg.Recommend.Timeout + 10*time.Second,
	}
}

// SetRouter sets the HTTP router/handler
func (s *Server) SetRouter(router http.Handler) {
	s.router = router
}

// App returns the wired planner application
func (s *Server) App() *routes.App {
	return s.app
}

// GetLogger returns the logger instance
func (s *Server) GetLogger() *zap.Logger {
	return s.logger
}

// GetConfig returns the configuration
func (s *Server) GetConfig() *config.Config {
	return s.cfg
}

// Close closes all server resources
func (s *Server) Close() {
	if s.app != nil {
		s.app.Close()
	}
}
