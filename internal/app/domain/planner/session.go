package planner

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-planner/internal/app/domain/recommend"
	"github.com/FACorreiaa/loci-planner/internal/app/domain/selection"
	"github.com/FACorreiaa/loci-planner/internal/app/domain/tripcontext"
	"github.com/FACorreiaa/loci-planner/internal/app/models"
	"github.com/FACorreiaa/loci-planner/internal/app/observability/metrics"
)

// ContextUpdate is a full replacement of the trip context inputs.
type ContextUpdate struct {
	TripDate      *time.Time
	StartingPoint string
	InputLocation string
	Location      *models.Location
}

// Session is the per-mount state of the planner step. It lives until the
// registry evicts it.
type Session struct {
	ID         string
	Controller *recommend.Controller
	Selection  *selection.Store
	Trip       *tripcontext.Store

	ctx    context.Context
	cancel context.CancelFunc

	updateMu sync.Mutex
	mu       sync.Mutex
	loadErr  error
}

func newSession(id string, controller *recommend.Controller) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:         id,
		Controller: controller,
		Selection:  selection.NewStore(),
		Trip:       tripcontext.NewStore(),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.Trip.OnLocationChange(s.onLocationChange)
	return s
}

// onLocationChange refetches the candidate list. Clearing the location keeps
// the current lists.
func (s *Session) onLocationChange(tc models.TripContext) {
	if tc.StartingLocation == nil {
		return
	}
	err := s.Controller.InitialLoad(s.ctx, tc.StartingLocation, tc.TripDate)
	s.mu.Lock()
	s.loadErr = err
	s.mu.Unlock()
}

// UpdateContext stores u and reports whether the list was refetched because
// the starting location changed to a new value; err is the outcome of that
// fetch.
func (s *Session) UpdateContext(u ContextUpdate) (reloaded bool, err error) {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	s.Trip.SetTripDate(u.TripDate)
	s.Trip.SetStartingPoint(u.StartingPoint)
	s.Trip.SetInputLocation(u.InputLocation)

	s.mu.Lock()
	s.loadErr = nil
	s.mu.Unlock()

	changed := s.Trip.SetStartingLocation(u.Location)
	if !changed || u.Location == nil {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return true, s.loadErr
}

// Reload repeats the candidate fetch for the current context.
func (s *Session) Reload(ctx context.Context) error {
	tc := s.Trip.Snapshot()
	return s.Controller.InitialLoad(ctx, tc.StartingLocation, tc.TripDate)
}

// Close tears the session down. In-flight fetches are cancelled and their
// completions discarded.
func (s *Session) Close() {
	s.cancel()
	s.Controller.Close()
	s.Selection.Clear()
}

// SessionRegistry maps mount ids to sessions. Sessions expire after ttl
// without a request.
type SessionRegistry struct {
	mu            sync.Mutex
	sessions      *cache.Cache
	newController func() *recommend.Controller
	logger        *zap.Logger
	metrics       *metrics.AppMetrics
}

func NewSessionRegistry(ttl time.Duration, newController func() *recommend.Controller, logger *zap.Logger, m *metrics.AppMetrics) *SessionRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	cleanup := ttl / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}
	r := &SessionRegistry{
		sessions:      cache.New(ttl, cleanup),
		newController: newController,
		logger:        logger,
		metrics:       m,
	}
	r.sessions.OnEvicted(func(id string, v interface{}) {
		v.(*Session).Close()
		r.metrics.SessionClosed(context.Background())
		r.logger.Debug("Planner session closed", zap.String("mount_id", id))
	})
	return r
}

// Get returns the session for id, creating it on first use. Every call
// extends the session's lifetime.
func (r *SessionRegistry) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, found := r.sessions.Get(id); found {
		s := v.(*Session)
		r.sessions.SetDefault(id, s)
		return s
	}

	// an expired entry the janitor has not collected yet still needs closing
	r.sessions.Delete(id)

	s := newSession(id, r.newController())
	r.sessions.SetDefault(id, s)
	r.metrics.SessionOpened(context.Background())
	r.logger.Debug("Planner session opened", zap.String("mount_id", id))
	return s
}

// Remove closes and forgets the session for id.
func (r *SessionRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions.Delete(id)
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	return r.sessions.ItemCount()
}

// CloseAll closes every session, used on shutdown.
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.sessions.Items() {
		r.sessions.Delete(id)
	}
	r.sessions.DeleteExpired()
}
