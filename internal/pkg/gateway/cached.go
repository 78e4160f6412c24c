package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/FACorreiaa/loci-planner/internal/app/domain/recommend"
	"github.com/FACorreiaa/loci-planner/internal/app/models"
	"github.com/FACorreiaa/loci-planner/internal/app/observability/metrics"
)

var _ recommend.Gateway = (*CachedGateway)(nil)

// CachedGateway caches candidate lists per (date, location) and collapses
// concurrent fetches of the same key into one backend call. The shared call
// ignores caller cancellation. Searches and failed fetches are never cached.
type CachedGateway struct {
	next    recommend.Gateway
	cache   *cache.Cache
	group   singleflight.Group
	logger  *zap.Logger
	metrics *metrics.AppMetrics
}

func NewCachedGateway(next recommend.Gateway, ttl time.Duration, logger *zap.Logger, m *metrics.AppMetrics) *CachedGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedGateway{
		next:    next,
		cache:   cache.New(ttl, 2*ttl),
		logger:  logger,
		metrics: m,
	}
}

func listKey(date *time.Time, loc models.Location) string {
	return fmt.Sprintf("%s|%.6f|%.6f|%s", models.FormatTripDate(date), loc.Latitude, loc.Longitude, loc.Label)
}

func (g *CachedGateway) ListCandidates(ctx context.Context, date *time.Time, loc models.Location) (models.ResultSet, error) {
	key := listKey(date, loc)
	if cached, found := g.cache.Get(key); found {
		g.logger.Debug("Candidate list cache hit", zap.String("key", key))
		g.metrics.RecordCacheHit(ctx, "candidate_list")
		return cached.(models.ResultSet).Clone(), nil
	}

	// shared by every waiter; next applies its own timeout
	fetchCtx := context.WithoutCancel(ctx)
	v, err, shared := g.group.Do(key, func() (interface{}, error) {
		results, err := g.next.ListCandidates(fetchCtx, date, loc)
		if err != nil {
			return nil, err
		}
		g.cache.Set(key, results.Clone(), cache.DefaultExpiration)
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		g.logger.Debug("Candidate list fetch shared", zap.String("key", key))
	}
	return v.(models.ResultSet).Clone(), nil
}

func (g *CachedGateway) SearchCandidates(ctx context.Context, query string, pool models.ResultSet) (models.ResultSet, error) {
	return g.next.SearchCandidates(ctx, query, pool)
}

// Flush drops every cached list.
func (g *CachedGateway) Flush() {
	g.cache.Flush()
}
