package recommend

import (
	"context"
	"time"

	"github.com/FACorreiaa/loci-planner/internal/app/models"
)

// Gateway is the recommendation backend as seen by the controller.
//
// Implementations report failures as *models.ServerError when the backend
// answered with an application error message and *models.TransportError when
// the call itself failed. Returned sets are already normalized: names are
// present and unique.
type Gateway interface {
	// ListCandidates returns the candidate places for a starting location.
	// date is optional and never required by the backend.
	ListCandidates(ctx context.Context, date *time.Time, loc models.Location) (models.ResultSet, error)
	// SearchCandidates answers a natural-language query against pool.
	SearchCandidates(ctx context.Context, query string, pool models.ResultSet) (models.ResultSet, error)
}

// ContentFilter decides whether a search query carries anything besides
// disallowed words.
type ContentFilter interface {
	IsAbusiveOnlyInput(text string) bool
}
