// Package provider orchestrates external geocoding, routing and weather
// providers as ordered fallback chains ending in deterministic mocks.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/rain-route-planner/internal/client"
	"github.com/kjstillabower/rain-route-planner/internal/observability"
	"github.com/kjstillabower/rain-route-planner/internal/traffic"
)

// ErrNoData is returned when every strategy in a chain failed or was unavailable.
var ErrNoData = errors.New("no provider returned data")

// Strategy is one provider attempt for a capability. Available reports whether
// the strategy can run at all (credential present, enabled); a nil Available
// means always available.
type Strategy[In, Out any] struct {
	Name      string
	Available func() bool
	Fn        func(ctx context.Context, in In) (Out, error)
}

// Chain runs strategies in order and returns the first success.
type Chain[In, Out any] struct {
	capability string
	strategies []Strategy[In, Out]
}

// NewChain returns a chain that tries strategies in the given order.
func NewChain[In, Out any](capability string, strategies ...Strategy[In, Out]) *Chain[In, Out] {
	return &Chain[In, Out]{capability: capability, strategies: strategies}
}

// Capability returns the chain's capability label (geocode, route, reverse, weather).
func (c *Chain[In, Out]) Capability() string {
	return c.capability
}

// Run tries each available strategy in order. It returns the first result with
// the name of the strategy that produced it, or an error wrapping ErrNoData.
// Unavailable strategies are skipped without a call.
func (c *Chain[In, Out]) Run(ctx context.Context, in In) (Out, string, error) {
	var zero Out
	logger := observability.LoggerFromContext(ctx)
	var lastErr error

	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}
		if s.Available != nil && !s.Available() {
			observability.FallbackAttemptsTotal.WithLabelValues(c.capability, s.Name, "skipped").Inc()
			continue
		}

		start := time.Now()
		out, err := attempt(ctx, s, in)
		if err == nil {
			traffic.RecordChainRun(lastErr != nil)
			observability.FallbackAttemptsTotal.WithLabelValues(c.capability, s.Name, "success").Inc()
			logger.Debug("provider succeeded",
				zap.String("capability", c.capability),
				zap.String("provider", s.Name),
				zap.Duration("duration", time.Since(start)),
			)
			return out, s.Name, nil
		}

		lastErr = err
		observability.FallbackAttemptsTotal.WithLabelValues(c.capability, s.Name, "error").Inc()
		logger.Debug("provider failed, falling back",
			zap.String("capability", c.capability),
			zap.String("provider", s.Name),
			zap.String("category", string(client.CategorizeError(err))),
			zap.Error(err),
		)
	}

	observability.ChainExhaustedTotal.WithLabelValues(c.capability).Inc()
	traffic.RecordChainRun(true)
	if lastErr != nil {
		return zero, "", fmt.Errorf("%s: %w (last error: %v)", c.capability, ErrNoData, lastErr)
	}
	return zero, "", fmt.Errorf("%s: %w (no provider available)", c.capability, ErrNoData)
}

// attempt runs one strategy, converting a panic into an error so a misbehaving
// provider cannot take the request down.
func attempt[In, Out any](ctx context.Context, s Strategy[In, Out], in In) (out Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", s.Name, r)
		}
	}()
	return s.Fn(ctx, in)
}
