// Package recommend owns the recommendation list shown in the planner step:
// the fetched base list, the active filter and the displayed list derived
// from them.
package recommend

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-planner/internal/app/models"
)

// DefaultTodayPickSize is the size of the "today's recommendation" subset.
const DefaultTodayPickSize = 7

// Options tunes a Controller.
type Options struct {
	TodayPickSize int
	// Rand drives the today's pick sampling. Nil seeds a fresh source.
	Rand *rand.Rand
}

// View is a snapshot of the controller state for rendering.
type View struct {
	Displayed    models.ResultSet
	BaseCount    int
	ActiveFilter models.FilterMode
	Loading      bool
	Query        string
	// Searched is set while the displayed list holds search results.
	Searched bool
	Location *models.Location
}

// Controller implements the list state machine. All methods are safe for
// concurrent use; gateway calls run outside the lock.
//
// Two generation counters guard against stale completions. loadGen orders
// InitialLoad calls; viewGen is taken by every operation that writes the
// displayed list, so a search that finishes after a newer filter toggle,
// search or load does not overwrite the newer list.
type Controller struct {
	gateway  Gateway
	filter   ContentFilter
	logger   *zap.Logger
	pickSize int

	mu        sync.Mutex
	rng       *rand.Rand
	base      models.ResultSet
	displayed models.ResultSet
	// settled is the last displayed list not blanked by a search in flight
	settled   models.ResultSet
	active    models.FilterMode
	query     string
	searched  bool
	location  *models.Location
	pending   int
	loadGen   uint64
	viewGen   uint64
	closed    bool
}

func NewController(gateway Gateway, filter ContentFilter, logger *zap.Logger, opts Options) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TodayPickSize <= 0 {
		opts.TodayPickSize = DefaultTodayPickSize
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Controller{
		gateway:   gateway,
		filter:    filter,
		logger:    logger,
		pickSize:  opts.TodayPickSize,
		rng:       opts.Rand,
		base:      models.ResultSet{},
		displayed: models.ResultSet{},
		settled:   models.ResultSet{},
		active:    models.NoFilter,
	}
}

// InitialLoad fetches the candidate list for loc. On success the base and
// displayed lists are replaced and the filter is cleared; on any error both
// lists are left untouched.
func (c *Controller) InitialLoad(ctx context.Context, loc *models.Location, date *time.Time) error {
	if loc == nil {
		return models.ErrNoStartingLocation
	}

	ctx, span := otel.Tracer("RecommendController").Start(ctx, "InitialLoad")
	defer span.End()
	span.SetAttributes(
		attribute.String("location", loc.String()),
		attribute.String("trip_date", models.FormatTripDate(date)),
	)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return models.ErrClosed
	}
	c.loadGen++
	ticket := c.loadGen
	c.pending++
	c.mu.Unlock()

	results, err := c.gateway.ListCandidates(ctx, date, *loc)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending--

	if c.closed {
		c.logger.Debug("Discarding candidate list after teardown")
		return models.ErrClosed
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list candidates failed")
		c.logFailure("Failed to load recommendation list", err, zap.String("location", loc.String()))
		return err
	}
	if ticket != c.loadGen {
		c.logger.Debug("Discarding stale candidate list",
			zap.Uint64("ticket", ticket),
			zap.Uint64("current", c.loadGen))
		return nil
	}

	l := *loc
	c.location = &l
	c.base = results.Clone()
	c.show(results.Clone())
	c.active = models.NoFilter
	c.searched = false
	c.viewGen++

	span.SetAttributes(attribute.Int("results.count", len(results)))
	span.SetStatus(codes.Ok, "candidates loaded")
	c.logger.Info("Recommendation list loaded",
		zap.String("location", loc.String()),
		zap.Int("count", len(results)))
	return nil
}

// ApplyKeywordFilter toggles the keyword filter k over the base list.
func (c *Controller) ApplyKeywordFilter(k string) View {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewGen++
	c.searched = false

	target := models.KeywordFilter(k)
	if c.active.Equal(target) {
		c.active = models.NoFilter
		c.show(c.base.Clone())
	} else {
		c.active = target
		c.show(c.base.FilterByKeyword(k))
	}
	c.logger.Debug("Keyword filter toggled",
		zap.String("keyword", k),
		zap.String("active", c.active.String()),
		zap.Int("displayed", len(c.displayed)))
	return c.viewLocked()
}

// ApplyTodayRandom toggles the today's pick subset. Every activation draws a
// new sample.
func (c *Controller) ApplyTodayRandom() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewGen++
	c.searched = false

	if c.active.Equal(models.TodayPick) {
		c.active = models.NoFilter
		c.show(c.base.Clone())
	} else {
		c.active = models.TodayPick
		c.show(samplePlaces(c.rng, c.base, c.pickSize))
	}
	c.logger.Debug("Today's pick toggled",
		zap.String("active", c.active.String()),
		zap.Int("displayed", len(c.displayed)))
	return c.viewLocked()
}

// ClearFilter shows the unmodified base list.
func (c *Controller) ClearFilter() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewGen++
	c.searched = false
	c.active = models.NoFilter
	c.show(c.base.Clone())
	return c.viewLocked()
}

// SetQuery stores the search input as typed.
func (c *Controller) SetQuery(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = q
}

// Query returns the current search input.
func (c *Controller) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// SearchByQuery sends query to the backend with the base list as the
// candidate pool. Blank and abusive-only queries are rejected with a
// *models.ValidationError before any backend call; the query is cleared and
// nothing else changes. While the request is in flight the displayed list is
// empty. The active filter is left as it was.
func (c *Controller) SearchByQuery(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		c.SetQuery("")
		return &models.ValidationError{Reason: models.ErrEmptyQuery}
	}
	if c.filter != nil && c.filter.IsAbusiveOnlyInput(query) {
		c.SetQuery("")
		c.logger.Warn("Rejected abusive-only search query")
		return &models.ValidationError{Reason: models.ErrAbusiveQuery}
	}

	ctx, span := otel.Tracer("RecommendController").Start(ctx, "SearchByQuery")
	defer span.End()
	span.SetAttributes(attribute.Int("query.length", len(query)))

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return models.ErrClosed
	}
	c.viewGen++
	ticket := c.viewGen
	c.pending++
	c.query = query
	previous := c.settled
	c.displayed = models.ResultSet{}
	pool := c.base.Clone()
	c.mu.Unlock()

	span.SetAttributes(attribute.Int("pool.size", len(pool)))
	results, err := c.gateway.SearchCandidates(ctx, query, pool)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending--

	if c.closed {
		c.logger.Debug("Discarding search results after teardown")
		return models.ErrClosed
	}
	current := ticket == c.viewGen
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search candidates failed")
		if current {
			c.show(previous)
		}
		c.logFailure("Recommendation search failed", err, zap.Int("pool", len(pool)))
		return err
	}
	if !current {
		c.logger.Debug("Discarding stale search results",
			zap.Uint64("ticket", ticket),
			zap.Uint64("current", c.viewGen))
		return nil
	}

	c.show(results.Clone())
	c.searched = true
	c.query = ""
	span.SetAttributes(attribute.Int("results.count", len(results)))
	span.SetStatus(codes.Ok, "search completed")
	c.logger.Info("Recommendation search completed",
		zap.Int("pool", len(pool)),
		zap.Int("count", len(results)))
	return nil
}

// View returns a snapshot of the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Base returns a copy of the base list.
func (c *Controller) Base() models.ResultSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.Clone()
}

// Lookup finds a place by name in the displayed list, then the base list.
func (c *Controller) Lookup(name string) (models.Place, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.displayed.Find(name); ok {
		return p, true
	}
	return c.base.Find(name)
}

// Loading reports whether a load or search is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending > 0
}

// Close tears the controller down. Completions arriving afterwards are
// dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.base = models.ResultSet{}
	c.show(models.ResultSet{})
	c.active = models.NoFilter
}

// show replaces the displayed list with a settled one. Callers hold mu.
func (c *Controller) show(rs models.ResultSet) {
	c.displayed = rs
	c.settled = rs
}

func (c *Controller) viewLocked() View {
	var loc *models.Location
	if c.location != nil {
		l := *c.location
		loc = &l
	}
	return View{
		Displayed:    c.displayed.Clone(),
		BaseCount:    len(c.base),
		ActiveFilter: c.active,
		Loading:      c.pending > 0,
		Query:        c.query,
		Searched:     c.searched,
		Location:     loc,
	}
}

func (c *Controller) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if se, ok := models.IsServerError(err); ok {
		c.logger.Warn(msg, append(fields, zap.String("server_message", se.Message))...)
		return
	}
	c.logger.Error(msg, fields...)
}
