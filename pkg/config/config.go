package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Serial      SerialConfig      `yaml:"serial"`
	Measurement MeasurementConfig `yaml:"measurement"`
	Mock        MockConfig        `yaml:"mock"`
	GPIO        GPIOConfig        `yaml:"gpio"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// MeasurementConfig contains drop parameters.
type MeasurementConfig struct {
	Spacing    float64       `yaml:"spacing"`     // Gate spacing in metres
	RunTimeout time.Duration `yaml:"run_timeout"` // Give up on a drop after this long
	Runs       int           `yaml:"runs"`        // Drops per session
}

// MockConfig contains simulated drop parameters.
type MockConfig struct {
	Gravity      float32       `yaml:"gravity"`       // m/s²
	DropHeight   float32       `yaml:"drop_height"`   // Fall before the first gate (m)
	ReleaseDelay time.Duration `yaml:"release_delay"` // Magnet release latency
	Realtime     bool          `yaml:"realtime"`      // Pace crossings with wall clock
}

// GPIOConfig contains Linux GPIO character device settings.
type GPIOConfig struct {
	Chip       string        `yaml:"chip"`
	MagnetLine int           `yaml:"magnet_line"`
	SensorLine int           `yaml:"sensor_line"`
	Tick       time.Duration `yaml:"tick"` // Software clock period
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "COM3", // Default for Windows, should be "/dev/ttyACM0" on Linux/Mac
			BaudRate: 115200,
		},
		Measurement: MeasurementConfig{
			Spacing:    0.10,
			RunTimeout: 5 * time.Second,
			Runs:       1,
		},
		Mock: MockConfig{
			Gravity:      9.81,
			DropHeight:   0.02,
			ReleaseDelay: 3 * time.Millisecond,
			Realtime:     false,
		},
		GPIO: GPIOConfig{
			Chip:       "gpiochip0",
			MagnetLine: 17,
			SensorLine: 27,
			Tick:       time.Millisecond,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Measurement.Spacing <= 0 {
		c.Measurement.Spacing = def.Measurement.Spacing
	}
	if c.Measurement.RunTimeout == 0 {
		c.Measurement.RunTimeout = def.Measurement.RunTimeout
	}
	if c.Measurement.Runs <= 0 {
		c.Measurement.Runs = def.Measurement.Runs
	}

	if c.Mock.Gravity <= 0 {
		c.Mock.Gravity = def.Mock.Gravity
	}
	if c.Mock.DropHeight < 0 {
		c.Mock.DropHeight = def.Mock.DropHeight
	}

	if c.GPIO.Chip == "" {
		c.GPIO.Chip = def.GPIO.Chip
	}
	if c.GPIO.Tick == 0 {
		c.GPIO.Tick = def.GPIO.Tick
	}
}
