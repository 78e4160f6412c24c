package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-planner/internal/app/domain/planner"
	"github.com/FACorreiaa/loci-planner/internal/app/domain/recommend"
	"github.com/FACorreiaa/loci-planner/internal/app/observability/metrics"
	"github.com/FACorreiaa/loci-planner/internal/pkg/config"
	"github.com/FACorreiaa/loci-planner/internal/pkg/gateway"
	"github.com/FACorreiaa/loci-planner/internal/pkg/middleware"
	"github.com/FACorreiaa/loci-planner/internal/pkg/textfilter"
)

// App is the wired planner application.
type App struct {
	Planner     *planner.Handler
	Sessions    *planner.SessionRegistry
	Lists       *gateway.CachedGateway
	SearchLimit *middleware.RateLimiter
}

// NewApp builds the planner dependencies from cfg.
func NewApp(cfg *config.Config, log *zap.Logger) (*App, error) {
	m := metrics.Get()

	backend := gateway.NewHTTPGateway(gateway.HTTPConfig{
		BaseURL:    cfg.Recommend.BaseURL,
		ListPath:   cfg.Recommend.ListPath,
		SearchPath: cfg.Recommend.SearchPath,
		Timeout:    cfg.Recommend.Timeout,
		Breaker: gateway.BreakerConfig{
			FailureThreshold: cfg.Recommend.BreakerFailures,
			OpenFor:          cfg.Recommend.BreakerOpenFor,
		},
	}, log, m)
	lists := gateway.NewCachedGateway(backend, cfg.Recommend.CacheTTL, log, m)

	var gw recommend.Gateway = lists
	if cfg.Gemini.APIKey != "" {
		searcher, err := gateway.NewGeminiSearcher(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Recommend.Timeout, log, m)
		if err != nil {
			return nil, err
		}
		gw = gateway.Composite{Lister: lists, Searcher: searcher}
		log.Info("Natural-language search served by Gemini", zap.String("model", cfg.Gemini.Model))
	}

	filter := textfilter.New(log, cfg.Planner.BlockedWords...)
	newController := func() *recommend.Controller {
		return recommend.NewController(gw, filter, log, recommend.Options{
			TodayPickSize: cfg.Planner.TodayPickSize,
		})
	}
	sessions := planner.NewSessionRegistry(cfg.Session.TTL, newController, log, m)

	return &App{
		Planner:     planner.NewHandler(sessions, cfg.Planner.Keywords, cfg.Planner.PageSize, log, m),
		Sessions:    sessions,
		Lists:       lists,
		SearchLimit: middleware.NewRateLimiter(log, cfg.Planner.SearchPerMin),
	}, nil
}

// Close ends every planner session.
func (a *App) Close() {
	a.Sessions.CloseAll()
	a.Lists.Flush()
}

// Setup mounts the application routes. mount issues the per-tab session id.
func Setup(r *gin.Engine, app *App, mount gin.HandlerFunc, log *zap.Logger) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": app.Sessions.Len()})
	})

	r.GET("/", func(c *gin.Context) {
		target := "/planner"
		if c.Request.URL.RawQuery != "" {
			target += "?" + c.Request.URL.RawQuery
		}
		c.Redirect(http.StatusFound, target)
	})

	plannerGroup := r.Group("/planner")
	plannerGroup.Use(mount)
	app.Planner.RegisterRoutes(plannerGroup, app.SearchLimit.Middleware(app.Planner.RateLimited))

	r.NoRoute(func(c *gin.Context) {
		log.Debug("No route", zap.String("path", c.Request.URL.Path))
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}
