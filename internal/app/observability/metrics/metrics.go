package metrics

import (
	"context"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	HTTPRequestsTotal      metric.Int64Counter
	RecommendFetchTotal    metric.Int64Counter
	SearchRequestsTotal    metric.Int64Counter
	SearchRejectedTotal    metric.Int64Counter
	FilterTogglesTotal     metric.Int64Counter
	SelectionTogglesTotal  metric.Int64Counter
	GatewayDurationSeconds metric.Float64Histogram
	GatewayErrorsTotal     metric.Int64Counter
	GatewayCacheHitsTotal  metric.Int64Counter
	ActiveSessions         metric.Int64UpDownCounter
	TemplateRenderDuration metric.Float64Histogram
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider, which is a
// no-op provider until the tracer package installs the Prometheus one.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("loci-planner")
		m := &AppMetrics{}

		m.HTTPRequestsTotal = mustCounter(meter, "http_requests_total", "Total number of HTTP requests completed", "{request}")
		m.RecommendFetchTotal = mustCounter(meter, "recommend_fetch_total", "Candidate list fetches by outcome", "{request}")
		m.SearchRequestsTotal = mustCounter(meter, "recommend_search_total", "Natural-language searches by outcome", "{request}")
		m.SearchRejectedTotal = mustCounter(meter, "recommend_search_rejected_total", "Searches rejected before reaching the backend", "{request}")
		m.FilterTogglesTotal = mustCounter(meter, "planner_filter_toggles_total", "Filter toggles by mode", "{toggle}")
		m.SelectionTogglesTotal = mustCounter(meter, "planner_selection_toggles_total", "Selection toggles by direction", "{toggle}")
		m.GatewayErrorsTotal = mustCounter(meter, "recommend_gateway_errors_total", "Recommendation gateway errors by kind", "{error}")
		m.GatewayCacheHitsTotal = mustCounter(meter, "recommend_gateway_cache_hits_total", "Candidate list cache hits", "{hit}")

		var err error
		m.GatewayDurationSeconds, err = meter.Float64Histogram(
			"recommend_gateway_duration_seconds",
			metric.WithDescription("Duration of recommendation backend calls in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create recommend_gateway_duration_seconds: %v", err)
		}

		m.ActiveSessions, err = meter.Int64UpDownCounter(
			"planner_active_sessions",
			metric.WithDescription("Current number of planner sessions"),
			metric.WithUnit("{session}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create planner_active_sessions: %v", err)
		}

		m.TemplateRenderDuration, err = meter.Float64Histogram(
			"template_render_duration_seconds",
			metric.WithDescription("Duration of template rendering in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create template_render_duration_seconds: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

func mustCounter(meter metric.Meter, name, description, unit string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		log.Fatalf("Metrics: Failed to create %s: %v", name, err)
	}
	return c
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}

func (m *AppMetrics) count(ctx context.Context, pick func(*AppMetrics) metric.Int64Counter, key, value string) {
	if m == nil {
		return
	}
	pick(m).Add(ctx, 1, metric.WithAttributes(attribute.String(key, value)))
}

// The Record* helpers are nil-safe so components can run without metrics in
// tests.

func (m *AppMetrics) RecordFetch(ctx context.Context, outcome string) {
	m.count(ctx, func(a *AppMetrics) metric.Int64Counter { return a.RecommendFetchTotal }, "outcome", outcome)
}

func (m *AppMetrics) RecordSearch(ctx context.Context, outcome string) {
	m.count(ctx, func(a *AppMetrics) metric.Int64Counter { return a.SearchRequestsTotal }, "outcome", outcome)
}

func (m *AppMetrics) RecordSearchRejected(ctx context.Context, reason string) {
	m.count(ctx, func(a *AppMetrics) metric.Int64Counter { return a.SearchRejectedTotal }, "reason", reason)
}

func (m *AppMetrics) RecordFilterToggle(ctx context.Context, mode string) {
	m.count(ctx, func(a *AppMetrics) metric.Int64Counter { return a.FilterTogglesTotal }, "mode", mode)
}

func (m *AppMetrics) RecordSelectionToggle(ctx context.Context, direction string) {
	m.count(ctx, func(a *AppMetrics) metric.Int64Counter { return a.SelectionTogglesTotal }, "direction", direction)
}

func (m *AppMetrics) RecordCacheHit(ctx context.Context, cacheName string) {
	m.count(ctx, func(a *AppMetrics) metric.Int64Counter { return a.GatewayCacheHitsTotal }, "cache", cacheName)
}

func (m *AppMetrics) RecordRequest(ctx context.Context, route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
		attribute.Int("status", status),
	))
}

// ObserveGateway records one backend call.
func (m *AppMetrics) ObserveGateway(ctx context.Context, op string, seconds float64, errKind string) {
	if m == nil {
		return
	}
	m.GatewayDurationSeconds.Record(ctx, seconds, metric.WithAttributes(attribute.String("op", op)))
	if errKind != "" {
		m.GatewayErrorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("kind", errKind),
		))
	}
}

// SessionOpened and SessionClosed track the live planner sessions.
func (m *AppMetrics) SessionOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, 1)
}

func (m *AppMetrics) SessionClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, -1)
}

// ObserveRender records a template render.
func (m *AppMetrics) ObserveRender(ctx context.Context, component string, seconds float64) {
	if m == nil {
		return
	}
	m.TemplateRenderDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("component", component)))
}
