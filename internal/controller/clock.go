package controller

import "time"

// Clock is the time source of the coordinator loop.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d. It is used for the fire pulse, which is never
	// cut short.
	Sleep(d time.Duration)
	// After is used for the poll wait, which shutdown interrupts.
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) Sleep(d time.Duration)                  { time.Sleep(d) }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
