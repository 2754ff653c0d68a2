package delivery

import (
	"math/rand/v2"
	"time"
)

// Backoff defaults. The schedule doubles from the base per attempt and is
// capped, with jitter applied so retries from a burst of failures spread out.
const (
	DefaultBackoffBase   = 5 * time.Second
	DefaultBackoffMax    = time.Hour
	defaultJitterPercent = 0.10
)

// BackoffPolicy computes the delay before the next delivery attempt.
type BackoffPolicy struct {
	Base time.Duration
	Max  time.Duration

	// rand is injectable for deterministic tests; nil uses the shared source.
	rand *rand.Rand
}

// DefaultBackoffPolicy returns the standard policy.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{Base: DefaultBackoffBase, Max: DefaultBackoffMax}
}

// NewBackoffPolicy returns a policy with the given base and cap, falling
// back to defaults for non-positive values.
func NewBackoffPolicy(base, max time.Duration) BackoffPolicy {
	if base <= 0 {
		base = DefaultBackoffBase
	}
	if max <= 0 {
		max = DefaultBackoffMax
	}
	return BackoffPolicy{Base: base, Max: max}
}

// WithRand returns a copy of the policy using the given random source.
func (p BackoffPolicy) WithRand(r *rand.Rand) BackoffPolicy {
	p.rand = r
	return p
}

// Delay returns the backoff delay after the given number of attempts
// (attempts >= 1). The delay is base * 2^(attempts-1), capped at Max, with
// +/-10% jitter.
func (p BackoffPolicy) Delay(attempts int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = DefaultBackoffBase
	}
	max := p.Max
	if max <= 0 {
		max = DefaultBackoffMax
	}
	if attempts < 1 {
		attempts = 1
	}

	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= max {
			delay = max
			break
		}
	}
	if delay > max {
		delay = max
	}

	return p.applyJitter(delay)
}

func (p BackoffPolicy) applyJitter(d time.Duration) time.Duration {
	jitterRange := float64(d) * defaultJitterPercent
	var f float64
	if p.rand != nil {
		f = p.rand.Float64()
	} else {
		f = rand.Float64()
	}
	// f in [0,1) maps to [-jitterRange, +jitterRange)
	offset := (f*2 - 1) * jitterRange
	return d + time.Duration(offset)
}
