//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/warthog618/go-gpiocdev"
)

// Sensor delivers rising edges of a gate sensor line.
type Sensor struct {
	chip    *gpiocdev.Chip
	line    *gpiocdev.Line
	handler atomic.Pointer[func()]
	edges   atomic.Uint32
}

// OpenSensor requests offset on chip as a rising-edge input.
func OpenSensor(chip string, offset int) (*Sensor, error) {
	c, err := gpiocdev.NewChip(chip, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chip, err)
	}

	s := &Sensor{chip: c}

	// Pull-down keeps an unplugged gate quiet.
	line, err := c.RequestLine(offset,
		gpiocdev.WithPullDown,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(s.event),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("request sensor line %d: %w", offset, err)
	}
	s.line = line

	return s, nil
}

func (s *Sensor) OnRisingEdge(handler func()) {
	s.handler.Store(&handler)
}

// Edges returns how many rising edges were seen.
func (s *Sensor) Edges() uint32 {
	return s.edges.Load()
}

func (s *Sensor) event(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventRisingEdge {
		return
	}
	s.edges.Add(1)
	if h := s.handler.Load(); h != nil {
		(*h)()
	}
}

// Close releases the line and the chip.
func (s *Sensor) Close() error {
	return errors.Join(s.line.Close(), s.chip.Close())
}

// Magnet drives the release output line.
type Magnet struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// OpenMagnet requests offset on chip as an output, initially holding.
func OpenMagnet(chip string, offset int) (*Magnet, error) {
	c, err := gpiocdev.NewChip(chip, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chip, err)
	}

	line, err := c.RequestLine(offset, gpiocdev.AsOutput(1))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("request magnet line %d: %w", offset, err)
	}

	return &Magnet{chip: c, line: line}, nil
}

func (m *Magnet) Set(high bool) {
	v := 0
	if high {
		v = 1
	}
	if err := m.line.SetValue(v); err != nil {
		log.Printf("Failed to drive magnet line: %v", err)
	}
}

// Close releases the line and the chip. The kernel returns the line to its
// default state, which drops the object if it is still held.
func (m *Magnet) Close() error {
	return errors.Join(m.line.Close(), m.chip.Close())
}
