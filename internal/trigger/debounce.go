package trigger

import "time"

// Debouncer decides whether a request may fire given the time of the last
// actuation. It is owned by a single goroutine and is not safe for
// concurrent use.
type Debouncer struct {
	minInterval time.Duration
	lastFire    time.Time
	fired       bool
}

// NewDebouncer returns a Debouncer that has never fired.
func NewDebouncer(minInterval time.Duration) *Debouncer {
	return &Debouncer{minInterval: minInterval}
}

// Allow reports whether a request made at the given time is at least the
// minimum interval away from the last fire, in either direction. Before the
// first fire every request is allowed.
func (d *Debouncer) Allow(requested time.Time) bool {
	if !d.fired {
		return true
	}
	delta := requested.Sub(d.lastFire)
	if delta < 0 {
		delta = -delta
	}
	return delta >= d.minInterval
}

// Record marks now as the time of the latest actuation.
func (d *Debouncer) Record(now time.Time) {
	d.lastFire = now
	d.fired = true
}

// LastFire returns the last actuation time and whether one happened.
func (d *Debouncer) LastFire() (time.Time, bool) {
	return d.lastFire, d.fired
}
