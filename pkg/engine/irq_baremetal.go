//go:build tinygo && baremetal

package engine

import "runtime/interrupt"

// Mask is the interrupt state saved by Disable.
type Mask struct {
	state interrupt.State
}

// Disable masks interrupts globally and returns the previous state.
// Use it as `defer Disable().Restore()`.
func Disable() Mask {
	return Mask{state: interrupt.Disable()}
}

// Restore puts back the interrupt state saved by Disable.
func (m Mask) Restore() {
	interrupt.Restore(m.state)
}
