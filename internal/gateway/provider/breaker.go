package provider

import (
	"context"
	"errors"

	"fxagent/internal/pkg/circuit"
)

// Guarded puts a circuit breaker in front of a provider. Caller
// cancellation does not count as a model failure.
type Guarded struct {
	inner   ModelProvider
	breaker *circuit.CircuitBreaker
}

func NewGuarded(inner ModelProvider, breaker *circuit.CircuitBreaker) *Guarded {
	return &Guarded{inner: inner, breaker: breaker}
}

func (g *Guarded) ID() string { return g.inner.ID() }

func (g *Guarded) Call(ctx context.Context, payload ChatPayload) (string, error) {
	if !g.breaker.Allow() {
		return "", ErrCircuitOpen
	}
	out, err := g.inner.Call(ctx, payload)
	switch {
	case err == nil:
		g.breaker.RecordSuccess()
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
	default:
		g.breaker.RecordFailure()
	}
	return out, err
}
