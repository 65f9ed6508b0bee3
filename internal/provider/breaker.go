package provider

import (
	"context"
	"errors"

	"github.com/kjstillabower/rain-route-planner/internal/circuitbreaker"
	"github.com/kjstillabower/rain-route-planner/internal/client"
)

// Breakers maps a provider name to its circuit breaker. Missing entries run unguarded.
type Breakers map[string]*circuitbreaker.CircuitBreaker

func (b Breakers) get(name string) *circuitbreaker.CircuitBreaker {
	if b == nil {
		return nil
	}
	return b[name]
}

// guarded runs fn through cb. A not-found answer is a healthy upstream response,
// so it is passed back to the caller without counting against the breaker.
func guarded[T any](ctx context.Context, cb *circuitbreaker.CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		out    T
		result error
	)
	err := cb.Call(ctx, func() error {
		out, result = fn(ctx)
		if errors.Is(result, client.ErrNotFound) {
			return nil
		}
		return result
	})
	if err != nil {
		return out, err
	}
	return out, result
}
