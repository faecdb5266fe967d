//go:build !linux

package gpio

// Sensor is not available on non-Linux platforms.
type Sensor struct{}

// OpenSensor returns ErrNotSupported on non-Linux platforms.
func OpenSensor(chip string, offset int) (*Sensor, error) {
	return nil, ErrNotSupported
}

func (s *Sensor) OnRisingEdge(handler func()) {}

func (s *Sensor) Edges() uint32 { return 0 }

func (s *Sensor) Close() error { return nil }

// Magnet is not available on non-Linux platforms.
type Magnet struct{}

// OpenMagnet returns ErrNotSupported on non-Linux platforms.
func OpenMagnet(chip string, offset int) (*Magnet, error) {
	return nil, ErrNotSupported
}

func (m *Magnet) Set(high bool) {}

func (m *Magnet) Close() error { return nil }
