package webhook

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff defaults: 1s base doubling up to 20 minutes, jittered.
const (
	DefaultBackoffBase   = time.Second
	DefaultBackoffFactor = 2.0
	DefaultBackoffMax    = 20 * time.Minute
)

// Backoff computes the wait before webhook attempt n+1. The zero value uses
// the defaults with jitter off.
type Backoff struct {
	Base   time.Duration
	Factor float64
	Max    time.Duration
	Jitter bool

	// randFn returns a uniform float in [0, 1); tests pin it.
	randFn func() float64
}

// Delay returns min(base * factor^attempts, max), where attempts counts the
// failures so far (0 after the first failed attempt). With jitter on, the
// result is drawn uniformly from [0, delay].
func (b Backoff) Delay(attempts int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = DefaultBackoffBase
	}
	factor := b.Factor
	if factor <= 0 {
		factor = DefaultBackoffFactor
	}
	maxDelay := b.Max
	if maxDelay <= 0 {
		maxDelay = DefaultBackoffMax
	}
	if attempts < 0 {
		attempts = 0
	}

	delay := time.Duration(float64(base) * math.Pow(factor, float64(attempts)))
	if delay <= 0 || delay > maxDelay {
		// covers float overflow for large attempt counts
		delay = maxDelay
	}

	if b.Jitter {
		delay = time.Duration(b.rand() * float64(delay))
	}
	return delay
}

func (b Backoff) rand() float64 {
	if b.randFn != nil {
		return b.randFn()
	}
	return rand.Float64()
}
