package server

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-planner/internal/app/observability/metrics"
	"github.com/FACorreiaa/loci-planner/internal/app/observability/tracer"
	"github.com/FACorreiaa/loci-planner/internal/pkg/config"
)

// ObservabilityShutdownFunc is the function type returned by InitObservability
type ObservabilityShutdownFunc func(context.Context) error

// InitObservability initializes OpenTelemetry and application metrics
func InitObservability(cfg config.ObservabilityConfig, logger *zap.Logger) (ObservabilityShutdownFunc, error) {
	otelShutdown, err := tracer.InitOtelProviders(tracer.Options{
		ServiceName:  cfg.ServiceName,
		MetricsAddr:  cfg.MetricsAddr,
		OTLPEndpoint: cfg.OTLPEndpoint,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	// instruments bind to the meter provider installed above
	metrics.InitAppMetrics()
	logger.Info("Observability initialized", zap.String("metrics_endpoint", cfg.MetricsAddr+"/metrics"))

	return otelShutdown, nil
}
