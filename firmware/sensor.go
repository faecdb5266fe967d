//go:build avr

package main

import (
	"device/avr"
	"machine"
	"runtime/interrupt"
)

// int1 delivers rising edges on PIN_SENSOR through external interrupt INT1.
type int1 struct{}

var int1Edge func()

func (int1) OnRisingEdge(handler func()) {
	int1Edge = handler
}

func configureSensor() {
	PIN_SENSOR.Configure(machine.PinConfig{Mode: machine.PinInput})

	state := interrupt.Disable()
	avr.EICRA.SetBits(avr.EICRA_ISC11 | avr.EICRA_ISC10)
	// Drop an edge latched while the pin was being configured.
	avr.EIFR.Set(avr.EIFR_INTF1)
	avr.EIMSK.SetBits(avr.EIMSK_INT1)
	interrupt.New(avr.IRQ_INT1, func(interrupt.Interrupt) {
		if int1Edge != nil {
			int1Edge()
		}
	})
	interrupt.Restore(state)
}
