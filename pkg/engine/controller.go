package engine

// Stats are counters kept by the control loop.
type Stats struct {
	Runs        uint32 // start commands accepted
	Reports     uint32 // report lines written, baselines included
	Ignored     uint32 // command bytes discarded
	WriteErrors uint32 // failed or short writes to the port
}

// Controller is the cooperative side of the engine. Poll must be called from
// a single loop; it is the only place that does I/O.
type Controller struct {
	state  *State
	clock  *Clock
	edges  *EdgeCounter
	port   Port
	magnet Output

	buf   [maxReportLen]byte
	stats Stats
}

// New wires a complete engine onto hw. The magnet is driven to Hold and the
// clock is left stopped, which is the power-on IDLE state.
func New(hw Hardware) *Controller {
	s := &State{}
	clock := NewClock(hw.Timer, s)
	c := &Controller{
		state:  s,
		clock:  clock,
		edges:  NewEdgeCounter(hw.Sensor, s, clock),
		port:   hw.Port,
		magnet: hw.Magnet,
	}
	clock.Stop()
	c.magnet.Set(Hold)
	return c
}

// State returns the shared state.
func (c *Controller) State() *State {
	return c.state
}

// Stats returns a copy of the loop counters.
func (c *Controller) Stats() Stats {
	return c.stats
}

// Armed reports whether crossings are being counted.
func (c *Controller) Armed() bool {
	defer Disable().Restore()
	return c.state.active
}

// Poll runs one loop iteration: at most one command byte, then the pending
// report if there is one.
func (c *Controller) Poll() {
	c.command()
	c.drain()
}

func (c *Controller) command() {
	if c.port.Buffered() == 0 {
		return
	}
	b, err := c.port.ReadByte()
	if err != nil {
		return
	}

	switch b {
	case CmdStart, CmdStartLower:
		c.arm()
	default:
		c.stats.Ignored++
	}
}

// arm releases the object and starts a fresh run. The t=0 baseline is
// written before the clock starts counting.
func (c *Controller) arm() {
	c.magnet.Set(Release)
	c.clock.Stop()

	c.state.rearm(c.clock)

	c.stats.Runs++
	c.report(0, 0)
	c.clock.Start()
}

func (c *Controller) drain() {
	if !c.state.Pending() {
		return
	}
	distance, elapsed := c.state.take()
	c.report(distance, elapsed)
}

func (c *Controller) report(distance uint16, elapsed uint32) {
	line := AppendReport(c.buf[:0], distance, elapsed)
	n, err := c.port.Write(line)
	if err != nil || n != len(line) {
		c.stats.WriteErrors++
		return
	}
	c.stats.Reports++
}
