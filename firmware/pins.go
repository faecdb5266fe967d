//go:build avr

package main

import "machine"

const (
	// Magnet driver: high holds the object, low releases it.
	PIN_MAGNET = machine.D6

	// Gate sensor output. D3 is INT1 on the ATmega328P.
	PIN_SENSOR = machine.D3

	// Serial configuration
	// Worst case report "100:4294967295#\r\n" is 17 bytes, 11 reports per run.
	// UART 8N1 at 115200 moves ~11.5 bytes/ms, so a report is out in ~1.5 ms,
	// well under the shortest gate interval of a 10 cm spacing drop.
	UART_BAUD_RATE = 115200
)
