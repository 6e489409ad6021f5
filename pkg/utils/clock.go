// Package utils holds the small shared pieces of the analyzer: the
// logging interface, a clock abstraction and a phase timer.
package utils

import "time"

// Clock abstracts time lookups so phase durations can be tested
// deterministically.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// RealClock reads the system clock.
type RealClock struct{}

// NewRealClock creates a RealClock.
func NewRealClock() *RealClock {
	return &RealClock{}
}

// Now returns the current time.
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the duration since t.
func (c *RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// MockClock is a manually advanced clock for tests.
type MockClock struct {
	current time.Time
}

// NewMockClock creates a MockClock starting at the given time.
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{current: start}
}

// Now returns the mock time.
func (c *MockClock) Now() time.Time {
	return c.current
}

// Since returns the duration from t to the mock time.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.current.Sub(t)
}

// Advance moves the mock time forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}
