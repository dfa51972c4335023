package reliability

import "time"

// Backoff yields strictly doubling delays from a fixed starting point.
// No jitter: retry timing must be reproducible.
type Backoff struct {
	next time.Duration
}

func NewBackoff(initial time.Duration) *Backoff {
	if initial <= 0 {
		initial = time.Second
	}
	return &Backoff{next: initial}
}

// Next returns the current delay and doubles the one after it.
func (b *Backoff) Next() time.Duration {
	d := b.next
	b.next *= 2
	return d
}
