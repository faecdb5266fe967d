package engine

// EdgeCounter turns gate crossings into distance while a run is armed.
type EdgeCounter struct {
	state *State
	clock *Clock
}

// NewEdgeCounter binds the rising-edge handler of src to s. The clock is
// stopped from the handler when the budget is used up.
func NewEdgeCounter(src EdgeSource, s *State, c *Clock) *EdgeCounter {
	e := &EdgeCounter{
		state: s,
		clock: c,
	}
	src.OnRisingEdge(e.edge)
	return e
}

// edge runs in interrupt context, once per rising edge.
func (e *EdgeCounter) edge() {
	defer Disable().Restore()

	s := e.state
	if !s.active {
		return
	}

	s.crossings++
	if s.crossings > Budget {
		return
	}

	s.distance += Spacing
	s.pending.Store(true)

	if s.crossings == Budget {
		e.clock.stop()
		s.active = false
	}
}
