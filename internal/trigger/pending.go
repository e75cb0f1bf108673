// Package trigger holds the pending-request pair shared between a producer
// (a capture goroutine or a button callback) and the coordinator loop.
package trigger

import (
	"sync"
	"time"
)

// Pending is a flag and timestamp that are always read and written together.
// The zero value is ready to use and holds no request.
type Pending struct {
	mu  sync.Mutex
	at  time.Time
	set bool
}

// Set records a request at the given time, replacing any unconsumed one.
func (p *Pending) Set(at time.Time) {
	p.mu.Lock()
	p.at = at
	p.set = true
	p.mu.Unlock()
}

// Take returns the pending request, if any, and clears the flag.
func (p *Pending) Take() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.set {
		return time.Time{}, false
	}
	p.set = false
	return p.at, true
}

// Peek returns the pending request without clearing it.
func (p *Pending) Peek() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.at, p.set
}

// Clear drops any pending request.
func (p *Pending) Clear() {
	p.mu.Lock()
	p.set = false
	p.mu.Unlock()
}
