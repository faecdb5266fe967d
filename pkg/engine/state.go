// Package engine is the free-fall timing core: a millisecond clock driven by a
// countdown timer overflow, a rising-edge gate counter and the polling
// controller that arms runs and reports distance/time pairs to the host.
//
// Both interrupt handlers and the controller work on one State. Handlers
// mutate it inside a critical section; the controller copies multi-field
// values out inside one and does its I/O outside.
package engine

import "sync/atomic"

const (
	// Spacing is the distance, in report units, between two gates.
	Spacing = 10
	// Budget is the number of crossings counted per run.
	Budget = 10
	// TimerReload makes the next overflow fire 251 ticks later, 1 ms at
	// 16 MHz with the /64 prescaler.
	TimerReload uint16 = 65285
)

// State is shared between the interrupt handlers and the control loop.
type State struct {
	elapsed   uint32
	distance  uint16
	crossings uint8
	active    bool
	running   bool // clock counting; overflows are ignored otherwise

	// pending is polled by the control loop outside the critical section.
	pending atomic.Bool
}

// Snapshot is a consistent copy of State.
type Snapshot struct {
	Elapsed   uint32
	Distance  uint16
	Crossings uint8
	Active    bool
	Pending   bool
}

// Snapshot copies every field in one critical section.
func (s *State) Snapshot() Snapshot {
	defer Disable().Restore()
	return Snapshot{
		Elapsed:   s.elapsed,
		Distance:  s.distance,
		Crossings: s.crossings,
		Active:    s.active,
		Pending:   s.pending.Load(),
	}
}

// Pending reports whether a sample is waiting to be written.
func (s *State) Pending() bool {
	return s.pending.Load()
}

// take copies the latest sample and clears pending.
func (s *State) take() (distance uint16, elapsed uint32) {
	defer Disable().Restore()
	distance, elapsed = s.distance, s.elapsed
	s.pending.Store(false)
	return distance, elapsed
}

// rearm zeroes the run, reloads the clock and marks the run active. A run
// already in flight is discarded, pending report included.
func (s *State) rearm(c *Clock) {
	defer Disable().Restore()
	c.reset()
	s.distance = 0
	s.crossings = 0
	s.pending.Store(false)
	s.active = true
}
