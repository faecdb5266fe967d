//go:build avr

package main

import (
	"device/avr"
	"runtime/interrupt"

	"github.com/itohio/gofreefall/pkg/engine"
)

// timer1 is Timer1 in normal mode. It counts up from the reload value and the
// overflow interrupt is the millisecond tick.
type timer1 struct{}

var timer1Overflow func()

// Enable selects clk/64.
func (timer1) Enable() {
	avr.TCCR1B.SetBits(avr.TCCR1B_CS11 | avr.TCCR1B_CS10)
}

func (timer1) Disable() {
	avr.TCCR1B.ClearBits(avr.TCCR1B_CS12 | avr.TCCR1B_CS11 | avr.TCCR1B_CS10)
}

// Load writes TCNT1. The high byte goes first so the pair is latched together.
func (timer1) Load(count uint16) {
	avr.TCNT1H.Set(uint8(count >> 8))
	avr.TCNT1L.Set(uint8(count))
}

func (timer1) OnOverflow(handler func()) {
	timer1Overflow = handler
}

func configureTimer1() {
	state := interrupt.Disable()
	avr.TCCR1A.Set(0)
	avr.TCCR1B.Set(0)
	timer1{}.Load(engine.TimerReload)
	avr.TIMSK1.SetBits(avr.TIMSK1_TOIE1)
	interrupt.New(avr.IRQ_TIMER1_OVF, func(interrupt.Interrupt) {
		if timer1Overflow != nil {
			timer1Overflow()
		}
	})
	interrupt.Restore(state)
}
