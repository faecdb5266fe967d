package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/itohio/gofreefall/pkg/config"
	"github.com/itohio/gofreefall/pkg/drop"
	"github.com/itohio/gofreefall/pkg/run"
	"github.com/itohio/gofreefall/pkg/sample"
)

func main() {
	var (
		portFlag   = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag   = flag.Bool("mock", false, "Use simulated rig instead of serial port")
		gpioFlag   = flag.Bool("gpio", false, "Run the rig on local Linux GPIO lines")
		runsFlag   = flag.Int("runs", 0, "Number of drops (overrides config)")
		outFlag    = flag.String("o", "", "Save completed runs to this YAML file")
		listFlag   = flag.Bool("list", false, "List serial ports and exit")
	)
	flag.Parse()

	if *listFlag {
		listPorts()
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override serial port if provided via command line
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *runsFlag > 0 {
		cfg.Measurement.Runs = *runsFlag
	}

	device, err := openDevice(cfg, *mockFlag, *gpioFlag)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	recorder := run.New()
	chain := startChain(cfg, device, recorder)

	runs := measure(ctx, cfg, device, chain.completed)

	closeMeasurementChain(chain)

	fmt.Printf("Completed %d of %d drops (%d aborted)\n", len(runs), cfg.Measurement.Runs, recorder.Aborted())

	if *outFlag != "" && len(runs) > 0 {
		if err := run.Save(*outFlag, runs); err != nil {
			log.Fatalf("Failed to save runs: %v", err)
		}
		fmt.Printf("Saved runs to %s\n", *outFlag)
	}
}

// openDevice connects the selected rig.
func openDevice(cfg *config.Config, useMock, useGPIO bool) (drop.Device, error) {
	var device drop.Device
	switch {
	case useMock:
		device = drop.NewMock(&cfg.Mock, cfg.Measurement.Spacing)
		fmt.Println("Using simulated rig")
	case useGPIO:
		d, err := drop.NewGPIO(&cfg.GPIO)
		if err != nil {
			return nil, fmt.Errorf("failed to open GPIO rig: %w", err)
		}
		device = d
		fmt.Printf("Using GPIO rig on %s\n", cfg.GPIO.Chip)
	default:
		device = drop.New(cfg.Serial.Port, cfg.Serial.BaudRate, drop.DefaultBufferSize)
	}

	if err := device.Connect(); err != nil {
		if useMock || useGPIO {
			return nil, fmt.Errorf("failed to connect to rig: %w", err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Serial.Port, err)
	}
	if !useMock && !useGPIO {
		fmt.Printf("Connected to serial port: %s\n", cfg.Serial.Port)
	}

	return device, nil
}

// measurementChain tracks the components of the measurement chain for graceful shutdown.
type measurementChain struct {
	device            drop.Device
	samplesStream     <-chan sample.Sample
	recorderGoroutine chan struct{} // Closed when recorder goroutine exits
	completed         <-chan run.Run
}

// startChain wires device samples through the converter into the recorder.
func startChain(cfg *config.Config, device drop.Device, recorder *run.Recorder) *measurementChain {
	completed := make(chan run.Run, cfg.Measurement.Runs)

	recorder.OnSample(func(s sample.Sample) {
		fmt.Printf("gate %2d  %7.3f m  %8v  %7.3f m/s\n", s.Gate, s.Position, s.Time, s.Velocity)
	})
	recorder.OnComplete(func(r run.Run) {
		select {
		case completed <- r:
		default:
		}
	})

	samplesStream := sample.NewConverter(cfg, drop.DefaultBufferSize)(device.Samples())

	recorderDone := make(chan struct{})
	go func() {
		defer close(recorderDone)
		recorder.ProcessSamples(samplesStream)
	}()

	return &measurementChain{
		device:            device,
		samplesStream:     samplesStream,
		recorderGoroutine: recorderDone,
		completed:         completed,
	}
}

// measure performs the configured number of drops.
func measure(ctx context.Context, cfg *config.Config, device drop.Device, completed <-chan run.Run) []run.Run {
	runs := make([]run.Run, 0, cfg.Measurement.Runs)

	for i := 0; i < cfg.Measurement.Runs; i++ {
		// A drop that finished after its timeout is not this one.
		for len(completed) > 0 {
			<-completed
		}

		fmt.Printf("Drop %d/%d\n", i+1, cfg.Measurement.Runs)
		if err := device.Start(); err != nil {
			log.Printf("Failed to start drop: %v", err)
			return runs
		}

		timeout := time.NewTimer(cfg.Measurement.RunTimeout)
		select {
		case <-ctx.Done():
			timeout.Stop()
			return runs
		case r := <-completed:
			timeout.Stop()
			runs = append(runs, r)
			fmt.Printf("Drop %d done in %v\n", i+1, r.Duration())
			if n := r.Merged(); n > 0 {
				log.Printf("Drop %d: %d gates shared a report", i+1, n)
			}
		case <-timeout.C:
			log.Printf("Drop %d timed out after %v", i+1, cfg.Measurement.RunTimeout)
		}
	}

	return runs
}

// closeMeasurementChain gracefully closes the measurement chain.
// Waits for all goroutines to finish and channels to drain.
func closeMeasurementChain(chain *measurementChain) {
	if chain == nil {
		return
	}

	// Close device - this will close the samples channel
	if chain.device != nil {
		chain.device.Close()
	}

	// The recorder goroutine exits when samplesStream closes
	if chain.recorderGoroutine != nil {
		<-chain.recorderGoroutine
	}
}

func listPorts() {
	ports, err := drop.Ports()
	if err != nil {
		log.Fatalf("%v", err)
	}
	for _, p := range ports {
		fmt.Println(p.Name)
	}
}
