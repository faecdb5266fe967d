package engine

// Clock counts milliseconds on top of a countdown Timer. The timer is
// reloaded on every overflow and each overflow adds one millisecond.
type Clock struct {
	timer  Timer
	state  *State
	reload uint16
}

// NewClock binds the overflow handler of t to s.
func NewClock(t Timer, s *State) *Clock {
	c := &Clock{
		timer:  t,
		state:  s,
		reload: TimerReload,
	}
	t.OnOverflow(c.overflow)
	return c
}

// Start enables counting. The elapsed counter is left as is.
func (c *Clock) Start() {
	defer Disable().Restore()
	c.state.running = true
	c.timer.Enable()
}

// Stop disables counting. The elapsed counter keeps its value.
func (c *Clock) Stop() {
	defer Disable().Restore()
	c.stop()
}

// stop must be called with interrupts masked. An overflow already on its way
// finds running false and is dropped.
func (c *Clock) stop() {
	c.timer.Disable()
	c.state.running = false
}

// Reset zeroes the elapsed counter and reloads the countdown register so the
// next overflow is exactly one millisecond away.
func (c *Clock) Reset() {
	defer Disable().Restore()
	c.reset()
}

// reset must be called with interrupts masked.
func (c *Clock) reset() {
	c.timer.Load(c.reload)
	c.state.elapsed = 0
}

// Elapsed returns the milliseconds counted since the last Reset.
func (c *Clock) Elapsed() uint32 {
	defer Disable().Restore()
	return c.state.elapsed
}

// overflow runs in interrupt context. Reload comes first to keep the period
// independent of handler latency.
func (c *Clock) overflow() {
	defer Disable().Restore()
	if !c.state.running {
		return
	}
	c.timer.Load(c.reload)
	c.state.elapsed++
}
