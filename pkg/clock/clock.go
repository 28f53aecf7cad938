// Package clock provides the time capability consumed by the memory model.
//
// Simulation time advances independently of wall-clock time, so every
// component that needs "now" receives a Clock explicitly instead of reading
// process-wide state. Sim is the settable clock used by simulations and tests.
package clock

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// Layout is the serialized timestamp format: YYYYMMDD-HH:MM:SS.
	Layout = "20060102-15:04:05"

	// ShortLayout is the minute-precision format used in human-readable summaries.
	ShortLayout = "20060102-15:04"
)

// ErrBackwards is returned when a Sim clock is asked to move back in time.
var ErrBackwards = errors.New("clock: time must not move backwards")

// Clock reports the current time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// Wall is a Clock backed by the system clock.
type Wall struct{}

// Now returns time.Now().
func (Wall) Now() time.Time {
	return time.Now()
}

// Sim is a monotonically non-decreasing simulation clock.
//
// It is safe for concurrent use.
type Sim struct {
	mu  sync.RWMutex
	now time.Time
}

// NewSim creates a simulation clock starting at start.
func NewSim(start time.Time) *Sim {
	return &Sim{now: start}
}

// Now returns the current simulation time.
func (s *Sim) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now
}

// Advance moves the clock forward by d. Negative durations are rejected.
func (s *Sim) Advance(d time.Duration) error {
	if d < 0 {
		return ErrBackwards
	}
	s.mu.Lock()
	s.now = s.now.Add(d)
	s.mu.Unlock()
	return nil
}

// Set moves the clock to t. Moving to an earlier time is rejected.
func (s *Sim) Set(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Before(s.now) {
		return fmt.Errorf("Set %s: %w", t.Format(Layout), ErrBackwards)
	}
	s.now = t
	return nil
}

// Format renders t with Layout.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Parse reads a Layout timestamp in the location of clk.
//
// Timestamps carry no zone, so they are interpreted in the zone the clock
// reports. A nil clock parses in UTC.
func Parse(value string, clk Clock) (time.Time, error) {
	loc := time.UTC
	if clk != nil {
		loc = clk.Now().Location()
	}
	return time.ParseInLocation(Layout, value, loc)
}
