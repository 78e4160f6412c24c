package server

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/FACorreiaa/loci-planner/internal/app/observability/metrics"
	"github.com/FACorreiaa/loci-planner/internal/pkg/config"
	"github.com/FACorreiaa/loci-planner/internal/pkg/middleware"
	"github.com/FACorreiaa/loci-planner/internal/routes"
)

// SetupRouter configures and returns the Gin router with all middleware and routes
func SetupRouter(cfg *config.Config, app *routes.App, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(ginzap.GinzapWithConfig(logger, &ginzap.Config{
		UTC:        true,
		TimeFormat: time.RFC3339,
		Context:    zapContextFunc(),
		SkipPaths:  []string{"/healthz"},
	}))
	r.Use(ginzap.RecoveryWithZap(logger, true))
	r.Use(middleware.OTELGinMiddleware(cfg.Observability.ServiceName))
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.SecurityMiddleware())
	r.Use(middleware.RequestMetrics(metrics.Get()))

	mounts := middleware.NewMountTokens(middleware.MountConfig{
		SecretKey:  cfg.Session.Secret,
		CookieName: cfg.Session.CookieName,
		TTL:        cfg.Session.TTL,
		Secure:     cfg.Session.Secure,
		Logger:     logger,
	})

	routes.Setup(r, app, mounts.Middleware(), logger)

	return r
}

// zapContextFunc adds the mount id and the OTEL trace ids to request logs.
// Form bodies are left out, they carry the user's location.
func zapContextFunc() ginzap.Fn {
	return func(c *gin.Context) []zapcore.Field {
		fields := []zapcore.Field{}

		if mountID := middleware.MountIDFromContext(c); mountID != "" {
			fields = append(fields, zap.String(middleware.MountIDKey, mountID))
		}
		if c.GetHeader("HX-Request") != "" {
			fields = append(fields, zap.Bool("htmx", true))
		}

		if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().IsValid() {
			fields = append(fields,
				zap.String("trace_id", span.SpanContext().TraceID().String()),
				zap.String("span_id", span.SpanContext().SpanID().String()),
			)
		}

		return fields
	}
}
