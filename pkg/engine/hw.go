package engine

// Timer is the hardware countdown timer behind the millisecond clock.
// Implementations are thin adapters over the target's registers.
type Timer interface {
	// Enable selects the prescaler so the counter starts counting.
	Enable()
	// Disable clears the clock-select bits. The counter holds its value.
	Disable()
	// Load writes the countdown register.
	Load(count uint16)
	// OnOverflow registers the overflow interrupt handler.
	OnOverflow(handler func())
}

// EdgeSource delivers rising edges from the gate sensor.
type EdgeSource interface {
	OnRisingEdge(handler func())
}

// Output drives the magnet that holds the object.
type Output interface {
	Set(high bool)
}

// Port is the serial link to the host. machine.UART satisfies it.
type Port interface {
	Buffered() int
	ReadByte() (byte, error)
	Write(p []byte) (int, error)
}

// Hardware bundles the capabilities an engine is built from.
type Hardware struct {
	Timer  Timer
	Sensor EdgeSource
	Magnet Output
	Port   Port
}

// Magnet levels.
const (
	Hold    = true
	Release = false
)
