// Package ratelimit paces calls to remote endpoints that enforce quotas.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/fd1az/otoken-adapter/internal/apperror"
)

// Limiter admits a fixed number of requests per minute with a burst of a
// tenth of that, at least one.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter. Non-positive rates admit everything.
func New(requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	burst := max(requestsPerMinute/10, 1)
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60), burst)}
}

// Wait blocks until a request may be sent. It fails with
// RATE_LIMIT_EXCEEDED when ctx ends first or cannot wait long enough.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return apperror.New(apperror.CodeRateLimitExceeded, apperror.WithCause(err))
	}
	return nil
}

// Allow reports whether a request may be sent now without waiting.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
