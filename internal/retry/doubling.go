package retry

import "time"

// Doubling is a backoff.BackOff that waits base, 2*base, 4*base and so on.
// Unlike backoff.ExponentialBackOff it applies no jitter.
type Doubling struct {
	Base time.Duration
	next time.Duration
}

// NewDoubling returns a Doubling backoff starting at base.
func NewDoubling(base time.Duration) *Doubling {
	return &Doubling{Base: base, next: base}
}

// NextBackOff returns the current wait and doubles the next one.
func (d *Doubling) NextBackOff() time.Duration {
	if d.next <= 0 {
		d.next = d.Base
	}
	wait := d.next
	d.next *= 2
	return wait
}

// Reset restarts the sequence at Base.
func (d *Doubling) Reset() {
	d.next = d.Base
}
