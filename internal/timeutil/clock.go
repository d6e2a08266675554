// Package timeutil provides a testable abstraction over time operations.
package timeutil

import (
	"sync"
	"time"
)

// Clock provides an abstraction over time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since t.
func (RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// MockClock is a manually controlled clock for testing. When a step is
// set, every call to Now advances the clock by that step first, which
// gives each timed section a predictable duration.
type MockClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewMockClock creates a new MockClock set to the given time.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now returns the mocked current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// Since returns the duration since t without stepping the clock.
func (c *MockClock) Since(t time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Add(c.step).Sub(t)
}

// Set sets the mock clock to a specific time.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the mock clock forward by the given duration.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SetStep makes every subsequent Now call advance the clock by d.
func (c *MockClock) SetStep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = d
}

// Stopwatch accumulates the time spent in repeated sections of work.
// It is not safe for concurrent use.
type Stopwatch struct {
	clock   Clock
	total   time.Duration
	laps    int
	started time.Time
	running bool
}

// NewStopwatch returns a stopped Stopwatch reading clock. A nil clock
// means RealClock.
func NewStopwatch(clock Clock) *Stopwatch {
	if clock == nil {
		clock = RealClock{}
	}
	return &Stopwatch{clock: clock}
}

// Start begins a lap. Starting a running stopwatch restarts the lap.
func (s *Stopwatch) Start() {
	s.started = s.clock.Now()
	s.running = true
}

// Stop ends the current lap and returns its duration.
func (s *Stopwatch) Stop() time.Duration {
	if !s.running {
		return 0
	}
	d := s.clock.Now().Sub(s.started)
	s.total += d
	s.laps++
	s.running = false
	return d
}

// Total returns the accumulated duration of completed laps.
func (s *Stopwatch) Total() time.Duration { return s.total }

// Laps returns the number of completed laps.
func (s *Stopwatch) Laps() int { return s.laps }

// Mean returns the average lap duration.
func (s *Stopwatch) Mean() time.Duration {
	if s.laps == 0 {
		return 0
	}
	return s.total / time.Duration(s.laps)
}
