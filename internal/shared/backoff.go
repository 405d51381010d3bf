package shared

import "time"

type BackoffConfig struct {
	Initial     time.Duration
	MaxAttempts int
	MaxDelay    time.Duration
}

func (c BackoffConfig) Normalize() BackoffConfig {
	if c.Initial <= 0 {
		c.Initial = 100 * time.Millisecond
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 2 * time.Second
	}
	return c
}

// Next doubles d up to MaxDelay.
func (c BackoffConfig) Next(d time.Duration) time.Duration {
	d *= 2
	if d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}
