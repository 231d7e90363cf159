// Package ratelimiter adapts golang.org/x/time/rate to ports.RateLimiter.
package ratelimiter

import "golang.org/x/time/rate"

// Limiter wraps a token-bucket rate.Limiter. It is the optional, externally
// owned limiter referenced in spec §6/§9: a ProcessQueue is constructed with
// a ports.RateLimiter or nil, never this concrete type directly.
type Limiter struct {
	l *rate.Limiter
}

// New builds a Limiter allowing ratePerSecond tokens per second, with a
// burst capacity of burst.
func New(ratePerSecond float64, burst int) *Limiter {
	return &Limiter{l: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// TryAcquire reports whether a token was available right now, consuming it
// if so. It never blocks, matching ports.RateLimiter's contract.
func (l *Limiter) TryAcquire() bool {
	return l.l.Allow()
}
