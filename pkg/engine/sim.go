package engine

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

// Sim is a software rig: every capability of Hardware backed by memory, so
// the engine runs unchanged in tests and in the mock device.
type Sim struct {
	Timer  *SimTimer
	Sensor *SimEdge
	Magnet *SimPin
	Port   *SimPort
}

// NewSim builds a rig whose port output goes to w, or to an internal buffer
// when w is nil.
func NewSim(w io.Writer) *Sim {
	return &Sim{
		Timer:  &SimTimer{},
		Sensor: &SimEdge{},
		Magnet: &SimPin{},
		Port:   NewSimPort(w),
	}
}

// Hardware returns the rig as engine capabilities.
func (s *Sim) Hardware() Hardware {
	return Hardware{
		Timer:  s.Timer,
		Sensor: s.Sensor,
		Magnet: s.Magnet,
		Port:   s.Port,
	}
}

// SimTimer is a 16-bit up-counter that overflows from 0xFFFF to 0, the way
// a countdown-by-reload timer does in normal mode.
type SimTimer struct {
	enabled   atomic.Bool
	count     atomic.Uint32
	loads     atomic.Uint32
	overflows atomic.Uint32
	handler   func()
}

func (t *SimTimer) Enable()  { t.enabled.Store(true) }
func (t *SimTimer) Disable() { t.enabled.Store(false) }

func (t *SimTimer) Load(count uint16) {
	t.count.Store(uint32(count))
	t.loads.Add(1)
}

func (t *SimTimer) OnOverflow(handler func()) {
	t.handler = handler
}

// Enabled reports whether the timer is counting.
func (t *SimTimer) Enabled() bool { return t.enabled.Load() }

// Count returns the counter register.
func (t *SimTimer) Count() uint16 { return uint16(t.count.Load()) }

// Loads returns how many times the counter register was written.
func (t *SimTimer) Loads() uint32 { return t.loads.Load() }

// Overflows returns how many overflows fired.
func (t *SimTimer) Overflows() uint32 { return t.overflows.Load() }

// Tick advances the counter by up to n ticks and returns how many were
// counted. Counting stops as soon as the timer is disabled.
func (t *SimTimer) Tick(n int) int {
	for i := 0; i < n; i++ {
		if !t.enabled.Load() {
			return i
		}
		if t.count.Add(1)&0xFFFF != 0 {
			continue
		}
		t.overflows.Add(1)
		if t.handler != nil {
			t.handler()
		}
	}
	return n
}

// Advance ticks until ms overflows have fired and returns the number that
// did. It returns early if the timer is or becomes disabled.
func (t *SimTimer) Advance(ms int) int {
	fired := 0
	for fired < ms && t.enabled.Load() {
		before := t.overflows.Load()
		t.Tick(1)
		if t.overflows.Load() != before {
			fired++
		}
	}
	return fired
}

// SimEdge delivers rising edges on demand.
type SimEdge struct {
	handler func()
}

func (e *SimEdge) OnRisingEdge(handler func()) {
	e.handler = handler
}

// Pulse delivers one rising edge.
func (e *SimEdge) Pulse() {
	if e.handler != nil {
		e.handler()
	}
}

// SimPin records the level of an output.
type SimPin struct {
	level    atomic.Bool
	changes  atomic.Uint32
	onChange func(high bool)
}

func (p *SimPin) Set(high bool) {
	p.level.Store(high)
	p.changes.Add(1)
	if p.onChange != nil {
		p.onChange(high)
	}
}

// Get returns the last level set.
func (p *SimPin) Get() bool { return p.level.Load() }

// Changes returns how many times Set was called.
func (p *SimPin) Changes() uint32 { return p.changes.Load() }

// OnChange registers fn to run on every Set. Register before the pin is used.
func (p *SimPin) OnChange(fn func(high bool)) {
	p.onChange = fn
}

// SimPort is an in-memory serial port. Bytes queued with Send are read back
// by the engine; whatever the engine writes goes to the sink.
type SimPort struct {
	mu   sync.Mutex
	in   []byte
	out  bytes.Buffer
	sink io.Writer
}

// NewSimPort returns a port writing to w, or to an internal buffer if w is nil.
func NewSimPort(w io.Writer) *SimPort {
	return &SimPort{sink: w}
}

// Send queues bytes as if the host had sent them.
func (p *SimPort) Send(b ...byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.in = append(p.in, b...)
}

func (p *SimPort) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.in)
}

func (p *SimPort) ReadByte() (byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.in) == 0 {
		return 0, io.EOF
	}
	b := p.in[0]
	p.in = p.in[1:]
	return b, nil
}

func (p *SimPort) Write(b []byte) (int, error) {
	if p.sink != nil {
		return p.sink.Write(b)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Write(b)
}

// Output returns everything written so far when no sink is set.
func (p *SimPort) Output() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.String()
}

// Lines returns the written reports without terminators.
func (p *SimPort) Lines() []string {
	var lines []string
	for _, l := range strings.Split(p.Output(), Terminator) {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
