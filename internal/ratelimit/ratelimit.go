package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter throttles outbound calls to one provider
type Limiter struct {
	name    string
	limiter *rate.Limiter
}

// New creates a limiter allowing rps requests per second with a burst of at
// least one request.
func New(name string, rps float64) *Limiter {
	if rps <= 0 {
		rps = 1.0
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		name:    name,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Name identifies the provider the limiter guards.
func (l *Limiter) Name() string {
	return l.name
}

// Wait blocks until a token is available or context is cancelled
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
