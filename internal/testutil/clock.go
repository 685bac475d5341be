package testutil

import (
	"sync"
	"time"
)

// StepClock is a thread-safe fake wall clock for tests.
//
// Every call to Now() advances the clock by a fixed step and returns the new
// time, so an operation that reads the clock twice always measures exactly
// one step. This makes latencies and elapsed times deterministic.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// Epoch is the default start time of a StepClock.
var Epoch = time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)

// NewStepClock creates a clock starting at Epoch that advances by step.
func NewStepClock(step time.Duration) *StepClock {
	return &StepClock{now: Epoch, step: step}
}

// Now advances the clock by one step and returns the new time.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// Current returns the current time without advancing.
func (c *StepClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t and changes the step.
//
// Used by tests that need a specific latency for one call.
func (c *StepClock) Set(t time.Time, step time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
	c.step = step
}
