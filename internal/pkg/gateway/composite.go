package gateway

import (
	"context"
	"time"

	"github.com/FACorreiaa/loci-planner/internal/app/domain/recommend"
	"github.com/FACorreiaa/loci-planner/internal/app/models"
)

// Searcher answers natural-language queries against a candidate pool.
type Searcher interface {
	SearchCandidates(ctx context.Context, query string, pool models.ResultSet) (models.ResultSet, error)
}

var _ recommend.Gateway = Composite{}

// Composite lists candidates with one backend and searches with another.
type Composite struct {
	Lister   recommend.Gateway
	Searcher Searcher
}

func (c Composite) ListCandidates(ctx context.Context, date *time.Time, loc models.Location) (models.ResultSet, error) {
	return c.Lister.ListCandidates(ctx, date, loc)
}

func (c Composite) SearchCandidates(ctx context.Context, query string, pool models.ResultSet) (models.ResultSet, error) {
	return c.Searcher.SearchCandidates(ctx, query, pool)
}
