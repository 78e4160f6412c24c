// Package gateway implements the recommendation backend used by the planner
// step: the HTTP client for the recommendation service, a caching decorator
// and an optional Gemini-backed search.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-planner/internal/app/domain/recommend"
	"github.com/FACorreiaa/loci-planner/internal/app/models"
	"github.com/FACorreiaa/loci-planner/internal/app/observability/metrics"
)

var _ recommend.Gateway = (*HTTPGateway)(nil)

const (
	opList   = "list_candidates"
	opSearch = "search_candidates"

	maxResponseBytes = 4 << 20
)

// HTTPConfig configures HTTPGateway.
type HTTPConfig struct {
	BaseURL    string
	ListPath   string
	SearchPath string
	Timeout    time.Duration
	Breaker    BreakerConfig
	// Client overrides the instrumented default client.
	Client *http.Client
}

// HTTPGateway talks JSON to the recommendation service.
type HTTPGateway struct {
	cfg     HTTPConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[rawResponse]
	logger  *zap.Logger
	metrics *metrics.AppMetrics
}

func NewHTTPGateway(cfg HTTPConfig, logger *zap.Logger, m *metrics.AppMetrics) *HTTPGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = "recommend-backend"
	}
	return &HTTPGateway{
		cfg:     cfg,
		client:  client,
		breaker: newBreaker(cfg.Breaker, logger),
		logger:  logger,
		metrics: m,
	}
}

// ListCandidates posts {date, startingLocation} to the list endpoint.
func (g *HTTPGateway) ListCandidates(ctx context.Context, date *time.Time, loc models.Location) (models.ResultSet, error) {
	req := listRequest{StartingLocation: loc}
	if date != nil {
		d := models.FormatTripDate(date)
		req.Date = &d
	}
	return g.call(ctx, opList, g.cfg.ListPath, req)
}

// SearchCandidates posts {userInput, examplePlaces} to the search endpoint.
func (g *HTTPGateway) SearchCandidates(ctx context.Context, query string, pool models.ResultSet) (models.ResultSet, error) {
	req := searchRequest{UserInput: query, ExamplePlaces: pool}
	if req.ExamplePlaces == nil {
		req.ExamplePlaces = models.ResultSet{}
	}
	return g.call(ctx, opSearch, g.cfg.SearchPath, req)
}

func (g *HTTPGateway) call(ctx context.Context, op, path string, payload any) (models.ResultSet, error) {
	ctx, span := otel.Tracer("RecommendGateway").Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.String("http.path", path))

	start := time.Now()
	results, err := g.do(ctx, op, path, payload)
	elapsed := time.Since(start).Seconds()

	errKind := ""
	switch {
	case err == nil:
		span.SetAttributes(attribute.Int("results.count", len(results)))
		span.SetStatus(codes.Ok, "backend call succeeded")
	case models.IsTransportError(err):
		errKind = "transport"
	default:
		errKind = "server"
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errKind+" error")
		g.logger.Warn("Recommendation backend call failed",
			zap.String("op", op),
			zap.String("kind", errKind),
			zap.Float64("elapsed_seconds", elapsed),
			zap.Error(err))
	}
	g.metrics.ObserveGateway(ctx, op, elapsed, errKind)
	return results, err
}

func (g *HTTPGateway) do(ctx context.Context, op, path string, payload any) (models.ResultSet, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &models.TransportError{Op: op, Err: errors.Wrap(err, "encoding request")}
	}

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	resp, err := g.breaker.Execute(func() (rawResponse, error) {
		return g.post(ctx, g.cfg.BaseURL+path, body)
	})
	if err != nil {
		return nil, &models.TransportError{Op: op, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return nil, &models.TransportError{Op: op, Err: errors.Wrap(err, "decoding response")}
	}
	if env.Error != "" {
		return nil, &models.ServerError{Message: env.Error}
	}
	return normalizePlaces(env.Results, g.logger), nil
}

// post performs one request. Non-2xx responses count as failures unless the
// body carries a backend error message, which is then surfaced as a server
// error by the caller.
func (g *HTTPGateway) post(ctx context.Context, url string, body []byte) (rawResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return rawResponse{}, errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return rawResponse{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return rawResponse{}, errors.Wrap(err, "reading response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env envelope
		if json.Unmarshal(data, &env) == nil && env.Error != "" {
			return rawResponse{status: resp.StatusCode, body: data}, nil
		}
		return rawResponse{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return rawResponse{status: resp.StatusCode, body: data}, nil
}
