package drop

import (
	"errors"
	"fmt"

	"github.com/itohio/gofreefall/pkg/config"
	"github.com/itohio/gofreefall/pkg/gpio"
)

// NewGPIO runs the engine on Linux GPIO lines: the gate sensor and magnet
// from cfg and a software millisecond clock.
func NewGPIO(cfg *config.GPIOConfig) (*Local, error) {
	if cfg == nil {
		cfg = &config.Default().GPIO
	}

	sensor, err := gpio.OpenSensor(cfg.Chip, cfg.SensorLine)
	if err != nil {
		return nil, fmt.Errorf("failed to open sensor: %w", err)
	}

	magnet, err := gpio.OpenMagnet(cfg.Chip, cfg.MagnetLine)
	if err != nil {
		sensor.Close()
		return nil, fmt.Errorf("failed to open magnet: %w", err)
	}

	timer := gpio.NewTickerTimer(cfg.Tick)

	return NewLocal(timer, sensor, magnet, func() error {
		return errors.Join(timer.Close(), magnet.Close(), sensor.Close())
	}), nil
}
