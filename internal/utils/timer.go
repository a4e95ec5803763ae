package utils

import "time"

// Timer measures elapsed wall-clock time for one engine run. NewTimer starts
// measuring immediately; Stop captures the elapsed duration.
type Timer struct {
	startTime time.Time
	duration  time.Duration
}

// NewTimer creates a Timer started at the current instant.
func NewTimer() *Timer {
	return &Timer{startTime: time.Now()}
}

// Stop records the time elapsed since construction.
func (t *Timer) Stop() {
	t.duration = time.Since(t.startTime)
}

// Duration returns the value captured by the most recent Stop, or zero if
// Stop has not been called.
func (t *Timer) Duration() time.Duration {
	return t.duration
}
