package orchestrator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// BackoffPolicy computes the delay before a same-model retry. Exponential
// growth from Base with the given Multiplier, capped at Cap, with optional
// ±25% jitter to avoid synchronized retries.
type BackoffPolicy struct {
	Base       time.Duration
	Cap        time.Duration
	Multiplier float64
	Jitter     bool
}

// DefaultBackoffPolicy returns a policy suitable for remote model APIs.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		Base:       1 * time.Second,
		Cap:        30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// normalized fills unusable fields with defaults.
func (p BackoffPolicy) normalized() BackoffPolicy {
	if p.Base <= 0 {
		p.Base = 1 * time.Second
	}
	if p.Cap < p.Base {
		p.Cap = p.Base
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = 2.0
	}
	return p
}

// Delay returns the backoff before retry attempt n (n >= 1).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 1 {
		attempt = 1
	}

	d := float64(p.Base) * math.Pow(p.Multiplier, float64(attempt-1))
	if d > float64(p.Cap) {
		d = float64(p.Cap)
	}

	if p.Jitter {
		jitter := d * 0.25
		d = d + (rand.Float64()*2-1)*jitter
	}

	if d < float64(p.Base) {
		d = float64(p.Base)
	}
	return time.Duration(d)
}

// Wait sleeps for the attempt's delay, honoring context cancellation.
func (p BackoffPolicy) Wait(ctx context.Context, attempt int) error {
	delay := p.Delay(attempt)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
