// Package clock provides ports.Clock implementations used to stamp
// service deployments.
package clock

import (
	"sync"
	"time"

	"github.com/artpar/svcroute/ports"
)

// System reads the wall clock in UTC.
type System struct{}

// Now returns the current UTC time.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Stepping is a deterministic clock for tests. Every call to Now returns
// the current value and then moves it forward by the configured step, so
// successive deployments get strictly increasing timestamps.
type Stepping struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

// NewStepping creates a clock starting at start and advancing by step on
// every read. A zero step yields a frozen clock.
func NewStepping(start time.Time, step time.Duration) *Stepping {
	return &Stepping{next: start, step: step}
}

// Now returns the current value and advances the clock.
func (s *Stepping) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.next
	s.next = s.next.Add(s.step)
	return t
}

// Peek returns the value the next call to Now will return.
func (s *Stepping) Peek() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

var (
	_ ports.Clock = System{}
	_ ports.Clock = (*Stepping)(nil)
)
