//go:build avr

//go:generate tinygo flash -target=arduino

package main

import (
	"machine"

	"github.com/itohio/gofreefall/pkg/engine"
)

var uart = machine.UART0

func main() {
	// Hold the object before anything else can run.
	PIN_MAGNET.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_MAGNET.High()

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	ctl := engine.New(engine.Hardware{
		Timer:  timer1{},
		Sensor: int1{},
		Magnet: PIN_MAGNET,
		Port:   uart,
	})

	// Handlers are bound, now let the interrupts in.
	configureTimer1()
	configureSensor()

	for {
		ctl.Poll()
	}
}
