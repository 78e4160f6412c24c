package gateway

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerConfig configures the circuit around backend calls.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	OpenFor          time.Duration
}

// rawResponse is what travels through the breaker.
type rawResponse struct {
	status int
	body   []byte
}

func newBreaker(cfg BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker[rawResponse] {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker[rawResponse](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Recommendation circuit state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// a caller giving up is not a backend failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}
