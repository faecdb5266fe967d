//go:build !(tinygo && baremetal)

package engine

import "sync"

// irqMu stands in for the global interrupt flag. Handlers run on their own
// goroutines when hosted, so masking means holding this lock.
var irqMu sync.Mutex

// Mask is the interrupt state saved by Disable.
type Mask struct{}

// Disable masks interrupts globally and returns the previous state.
// Use it as `defer Disable().Restore()`. Sections must not nest when hosted.
func Disable() Mask {
	irqMu.Lock()
	return Mask{}
}

// Restore puts back the interrupt state saved by Disable.
func (Mask) Restore() {
	irqMu.Unlock()
}
