package sample

import (
	"log"
	"time"

	"github.com/itohio/gofreefall/pkg/config"
	"github.com/itohio/gofreefall/pkg/drop"
	"github.com/itohio/gofreefall/pkg/engine"
)

// Sample represents a processed measurement sample with physical values.
type Sample struct {
	Timestamp time.Time     `yaml:"timestamp"`
	Gate      int           `yaml:"gate"`     // Gates crossed, 0 for the release baseline
	Position  float64       `yaml:"position"` // Distance fallen (m)
	Time      time.Duration `yaml:"time"`     // Since release
	Velocity  float64       `yaml:"velocity"` // Mean over the interval since the previous sample (m/s)
}

// Baseline reports whether s opens a run.
func (s Sample) Baseline() bool {
	return s.Gate == 0
}

// Converter is a function type that converts RawSample channel to Sample channel.
type Converter func(in <-chan drop.RawSample) <-chan Sample

// NewConverter creates a converter function that transforms RawSample to Sample.
func NewConverter(cfg *config.Config, bufSize int) Converter {
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan drop.RawSample) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			var prev Sample
			for raw := range in {
				sample := convertSample(raw, prev, cfg.Measurement.Spacing)
				prev = sample

				select {
				case out <- sample:
				case <-time.After(time.Second):
					log.Printf("Converter output channel full, dropping sample")
				}
			}
		}()

		return out
	}
}

// convertSample converts a RawSample to Sample. prev is the sample before it
// in the stream; a baseline starts over.
func convertSample(raw drop.RawSample, prev Sample, spacing float64) Sample {
	s := Sample{
		Timestamp: raw.Timestamp,
		Gate:      int(raw.Distance / engine.Spacing),
		Position:  unitsToMetres(raw.Distance, spacing),
		Time:      time.Duration(raw.Elapsed) * time.Millisecond,
	}
	if s.Baseline() {
		return s
	}

	s.Velocity = velocity(prev, s)
	return s
}

// unitsToMetres converts report distance units to metres. spacing is the
// physical gate spacing; one gate is engine.Spacing units.
func unitsToMetres(distance uint16, spacing float64) float64 {
	return float64(distance) * spacing / engine.Spacing
}

// velocity is the mean velocity between two samples, or 0 when no time
// passed between them.
func velocity(from, to Sample) float64 {
	dt := (to.Time - from.Time).Seconds()
	if dt <= 0 {
		return 0
	}
	return (to.Position - from.Position) / dt
}
