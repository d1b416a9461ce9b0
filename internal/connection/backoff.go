package connection

import (
	"math"
	"time"
)

// ReconnectPolicy controls reconnect backoff.
type ReconnectPolicy struct {
	InitialDelay time.Duration // Delay before the first attempt
	MaxDelay     time.Duration // Ceiling for any delay
	Multiplier   float64       // Growth factor per attempt (default 2)
	MaxAttempts  int           // Consecutive failed attempts before giving up
}

// DefaultReconnectPolicy returns sensible defaults.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		MaxAttempts:  10,
	}
}

// Delay returns the wait before attempt n (1-based):
// min(InitialDelay * Multiplier^(n-1), MaxDelay).
func (p ReconnectPolicy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2
	}

	d := float64(p.InitialDelay) * math.Pow(mult, float64(n-1))
	if d >= float64(p.MaxDelay) || math.IsInf(d, 0) || math.IsNaN(d) {
		return p.MaxDelay
	}
	return time.Duration(d)
}
