// Package planner serves the place-recommendation step of the trip wizard.
package planner

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-planner/internal/app/models"
	"github.com/FACorreiaa/loci-planner/internal/app/observability/metrics"
	"github.com/FACorreiaa/loci-planner/internal/pkg/middleware"
)

// contextForm is the trip context as posted by the context form or passed on
// the page URL by the previous wizard step.
type contextForm struct {
	TripDate      string   `form:"tripDate" binding:"omitempty,datetime=2006-01-02"`
	StartingPoint string   `form:"startingPoint" binding:"max=200"`
	InputLocation string   `form:"inputLocation" binding:"max=200"`
	Latitude      *float64 `form:"lat" binding:"required_with=Longitude,omitempty,latitude"`
	Longitude     *float64 `form:"lng" binding:"required_with=Latitude,omitempty,longitude"`
	Label         string   `form:"label" binding:"max=200"`
}

func (f contextForm) update() ContextUpdate {
	u := ContextUpdate{
		StartingPoint: strings.TrimSpace(f.StartingPoint),
		InputLocation: strings.TrimSpace(f.InputLocation),
	}
	if f.TripDate != "" {
		if d, err := time.Parse(models.TripDateLayout, f.TripDate); err == nil {
			u.TripDate = &d
		}
	}
	if f.Latitude != nil && f.Longitude != nil {
		u.Location = &models.Location{
			Latitude:  *f.Latitude,
			Longitude: *f.Longitude,
			Label:     strings.TrimSpace(f.Label),
		}
	}
	return u
}

// Handler serves the planner routes.
type Handler struct {
	registry *SessionRegistry
	keywords []string
	pageSize int
	logger   *zap.Logger
	metrics  *metrics.AppMetrics
}

func NewHandler(registry *SessionRegistry, keywords []string, pageSize int, logger *zap.Logger, m *metrics.AppMetrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		registry: registry,
		keywords: keywords,
		pageSize: pageSize,
		logger:   logger,
		metrics:  m,
	}
}

func (h *Handler) session(c *gin.Context) *Session {
	id := middleware.MountIDFromContext(c)
	if id == "" {
		// without the mount middleware every client shares one session
		id = "anonymous"
	}
	return h.registry.Get(id)
}

func (h *Handler) render(c *gin.Context, status int, name string, component templ.Component) {
	start := time.Now()
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := component.Render(c.Request.Context(), c.Writer); err != nil {
		h.logger.Error("Failed to render component", zap.String("component", name), zap.Error(err))
	}
	h.metrics.ObserveRender(c.Request.Context(), name, time.Since(start).Seconds())
}

// statusFor keeps htmx requests on 200 so the error markup is swapped in.
func statusFor(c *gin.Context, status int) int {
	if middleware.IsHTMX(c) {
		return http.StatusOK
	}
	return status
}

func (h *Handler) renderStep(c *gin.Context, s *Session, status int, alert *Alert) {
	data := newPageData(s, h.keywords, h.pageSize, alert)
	if middleware.IsHTMX(c) {
		h.render(c, http.StatusOK, "planner_step", PlannerStep(data))
		return
	}
	h.render(c, status, "planner_page", Page(data))
}

func (h *Handler) recordLoad(c *gin.Context, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case models.IsTransportError(err):
		outcome = "transport_error"
	default:
		if _, ok := models.IsServerError(err); ok {
			outcome = "server_error"
		} else {
			outcome = "rejected"
		}
	}
	h.metrics.RecordFetch(c.Request.Context(), outcome)
}

// Show renders the step. Query parameters in the trip context shape seed the
// context, so the previous step can link here directly.
func (h *Handler) Show(c *gin.Context) {
	s := h.session(c)

	var alert *Alert
	if len(c.Request.URL.RawQuery) > 0 {
		var form contextForm
		if err := c.ShouldBindQuery(&form); err != nil {
			h.logger.Warn("Ignoring invalid trip context in query", zap.Error(err))
			alert = &Alert{Kind: AlertWarning, Message: MsgBadContext}
		} else if u := form.update(); u.Location != nil {
			if reloaded, err := s.UpdateContext(u); reloaded {
				h.recordLoad(c, err)
				alert = alertFor(err, MsgLoadFailed)
			}
		}
	}
	h.renderStep(c, s, http.StatusOK, alert)
}

// UpdateContext stores the posted trip context. A changed starting location
// refetches the list.
func (h *Handler) UpdateContext(c *gin.Context) {
	s := h.session(c)

	var form contextForm
	if err := c.ShouldBind(&form); err != nil {
		h.logger.Warn("Invalid trip context", zap.Error(err))
		h.renderStep(c, s, statusFor(c, http.StatusBadRequest), &Alert{Kind: AlertWarning, Message: MsgBadContext})
		return
	}

	reloaded, err := s.UpdateContext(form.update())
	var alert *Alert
	if reloaded {
		h.recordLoad(c, err)
		alert = alertFor(err, MsgLoadFailed)
	}
	h.logger.Debug("Trip context updated",
		zap.String("mount_id", s.ID),
		zap.Bool("reloaded", reloaded))
	h.renderStep(c, s, http.StatusOK, alert)
}

// Reload repeats the candidate fetch on user request.
func (h *Handler) Reload(c *gin.Context) {
	s := h.session(c)
	err := s.Reload(c.Request.Context())
	h.recordLoad(c, err)
	h.renderStep(c, s, http.StatusOK, alertFor(err, MsgLoadFailed))
}

func (h *Handler) ToggleKeyword(c *gin.Context) {
	s := h.session(c)
	keyword := strings.TrimSpace(c.Param("keyword"))
	if keyword == "" {
		h.renderStep(c, s, statusFor(c, http.StatusBadRequest), nil)
		return
	}
	view := s.Controller.ApplyKeywordFilter(keyword)
	h.metrics.RecordFilterToggle(c.Request.Context(), "keyword")
	h.logger.Debug("Keyword filter applied",
		zap.String("keyword", keyword),
		zap.String("active", view.ActiveFilter.String()))
	h.renderStep(c, s, http.StatusOK, nil)
}

func (h *Handler) ToggleToday(c *gin.Context) {
	s := h.session(c)
	s.Controller.ApplyTodayRandom()
	h.metrics.RecordFilterToggle(c.Request.Context(), "today")
	h.renderStep(c, s, http.StatusOK, nil)
}

func (h *Handler) ClearFilter(c *gin.Context) {
	s := h.session(c)
	s.Controller.ClearFilter()
	h.metrics.RecordFilterToggle(c.Request.Context(), "clear")
	h.renderStep(c, s, http.StatusOK, nil)
}

// Search runs a natural-language search over the base list.
func (h *Handler) Search(c *gin.Context) {
	s := h.session(c)
	query := c.PostForm("query")
	s.Controller.SetQuery(query)

	err := s.Controller.SearchByQuery(c.Request.Context(), query)
	switch {
	case err == nil:
		h.metrics.RecordSearch(c.Request.Context(), "ok")
	case models.IsValidationError(err):
		reason := "empty"
		if errors.Is(err, models.ErrAbusiveQuery) {
			reason = "abusive"
		}
		h.metrics.RecordSearchRejected(c.Request.Context(), reason)
	case models.IsTransportError(err):
		h.metrics.RecordSearch(c.Request.Context(), "transport_error")
	default:
		h.metrics.RecordSearch(c.Request.Context(), "server_error")
	}
	h.renderStep(c, s, http.StatusOK, alertFor(err, MsgSearchFailed))
}

// RateLimited answers a throttled search.
func (h *Handler) RateLimited(c *gin.Context) {
	s := h.session(c)
	h.metrics.RecordSearchRejected(c.Request.Context(), "rate_limited")
	h.renderStep(c, s, statusFor(c, http.StatusTooManyRequests), &Alert{Kind: AlertWarning, Message: MsgRateLimited})
}

// ToggleSelection adds or removes a place by name and re-renders its row
// together with the selection summary. A selected place that is no longer
// listed, for example after the starting location changed, can still be
// removed.
func (h *Handler) ToggleSelection(c *gin.Context) {
	s := h.session(c)
	name := c.PostForm("name")

	place, ok := s.Controller.Lookup(name)
	if !ok {
		place, ok = models.ResultSet(s.Selection.List()).Find(name)
	}
	if !ok {
		err := fmt.Errorf("toggle %q: %w", name, models.ErrNotFound)
		h.logger.Warn("Selection toggle for unknown place", zap.Error(err))
		h.render(c, statusFor(c, http.StatusNotFound), "alert", AlertBox(alertFor(err, MsgUnknownPlace), false))
		return
	}

	added := s.Selection.ToggleFor(place)
	direction := "removed"
	if added {
		direction = "added"
	}
	h.metrics.RecordSelectionToggle(c.Request.Context(), direction)

	row := PlaceRow(place, added)
	summary := SelectionSummary(s.Selection.List(), true)
	h.render(c, http.StatusOK, "place_row", templ.Join(row, summary))
}

// RemoveSelection drops a place from the selection summary and re-renders
// the step so the list rows follow. Removing an absent place is a no-op.
func (h *Handler) RemoveSelection(c *gin.Context) {
	s := h.session(c)
	name := c.PostForm("name")
	if s.Selection.Remove(name) {
		h.metrics.RecordSelectionToggle(c.Request.Context(), "removed")
	}
	h.renderStep(c, s, http.StatusOK, nil)
}

// ListChunk serves the next window of the displayed list.
func (h *Handler) ListChunk(c *gin.Context) {
	s := h.session(c)
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.Status(http.StatusBadRequest)
		return
	}
	data := newPageData(s, h.keywords, h.pageSize, nil)
	h.render(c, http.StatusOK, "list_chunk", ListChunk(data, offset))
}

type selectionResponse struct {
	Count  int            `json:"count"`
	Places []models.Place `json:"places"`
}

// Selection returns the selected places for the following wizard steps.
func (h *Handler) Selection(c *gin.Context) {
	c.JSON(http.StatusOK, newSelectionResponse(h.session(c)))
}

// Finish hands the selection to the next wizard step and ends the session.
func (h *Handler) Finish(c *gin.Context) {
	s := h.session(c)
	resp := newSelectionResponse(s)
	h.registry.Remove(s.ID)
	h.logger.Info("Planner step finished",
		zap.String("mount_id", s.ID),
		zap.Int("selected", resp.Count))
	c.JSON(http.StatusOK, resp)
}

func newSelectionResponse(s *Session) selectionResponse {
	places := s.Selection.List()
	if places == nil {
		places = []models.Place{}
	}
	return selectionResponse{Count: len(places), Places: places}
}

// RegisterRoutes mounts the planner routes on g. searchLimit guards the
// search endpoint.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup, searchLimit gin.HandlerFunc) {
	g.GET("", h.Show)
	g.POST("/context", h.UpdateContext)
	g.POST("/reload", h.Reload)
	g.POST("/filters/keyword/:keyword", h.ToggleKeyword)
	g.POST("/filters/today", h.ToggleToday)
	g.POST("/filters/clear", h.ClearFilter)
	if searchLimit != nil {
		g.POST("/search", searchLimit, h.Search)
	} else {
		g.POST("/search", h.Search)
	}
	g.POST("/selection/toggle", h.ToggleSelection)
	g.POST("/selection/remove", h.RemoveSelection)
	g.POST("/finish", h.Finish)
	g.GET("/list", h.ListChunk)
	g.GET("/selection", h.Selection)
}
