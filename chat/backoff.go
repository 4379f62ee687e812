package chat

import "time"

// Backoff computes capped exponential reconnect delays:
// min(Base * 2^attempt, Max). The attempt counter advances on each Next call
// and drops back to zero on Reset (i.e. after a successful connect).
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	attempt int
}

// Next returns the delay for the current attempt and advances the counter.
func (b *Backoff) Next() time.Duration {
	base := b.Base
	if base <= 0 {
		base = time.Second
	}
	max := b.Max
	if max <= 0 {
		max = time.Minute
	}
	d := max
	if b.attempt < 31 {
		if v := base << b.attempt; v > 0 && v < max {
			d = v
		}
	}
	b.attempt++
	return d
}

// Reset zeroes the attempt counter.
func (b *Backoff) Reset() { b.attempt = 0 }

// Attempt returns how many delays have been handed out since the last reset.
func (b *Backoff) Attempt() int { return b.attempt }
