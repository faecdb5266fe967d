package drop

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/itohio/gofreefall/pkg/engine"
)

// DefaultPollInterval is how often the in-process control loop runs.
const DefaultPollInterval = 100 * time.Microsecond

// Local runs the timing engine in-process. The engine writes reports into a
// pipe which is read back exactly like a serial stream.
type Local struct {
	ctl    *engine.Controller
	port   *engine.SimPort
	pr     *io.PipeReader
	pw     *io.PipeWriter
	poll   time.Duration
	closer func() error

	// workers run alongside the loop from Connect until Close.
	workers []func(ctx context.Context)

	samples   chan RawSample
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	connected bool
	closed    bool
}

// NewLocal builds an engine over timer, sensor and magnet. closer, if not
// nil, releases the hardware when the device is closed.
func NewLocal(timer engine.Timer, sensor engine.EdgeSource, magnet engine.Output, closer func() error) *Local {
	pr, pw := io.Pipe()
	port := engine.NewSimPort(pw)

	ctx, cancel := context.WithCancel(context.Background())

	return &Local{
		ctl: engine.New(engine.Hardware{
			Timer:  timer,
			Sensor: sensor,
			Magnet: magnet,
			Port:   port,
		}),
		port:    port,
		pr:      pr,
		pw:      pw,
		poll:    DefaultPollInterval,
		closer:  closer,
		samples: make(chan RawSample, DefaultBufferSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Connect starts the control loop and the report reader.
func (d *Local) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected || d.closed {
		return ErrAlreadyConnected
	}
	d.connected = true

	d.wg.Add(2 + len(d.workers))
	go func() {
		defer d.wg.Done()
		readSamples(d.ctx, d.pr, d.samples)
	}()
	go d.loop()
	for _, fn := range d.workers {
		fn := fn
		go func() {
			defer d.wg.Done()
			fn(d.ctx)
		}()
	}

	return nil
}

// Close stops the engine, waits for its goroutines and closes the samples
// channel. A closed Local cannot be reconnected.
func (d *Local) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.cancel()
	// Unblocks both a report write in the loop and the reader.
	d.pr.Close()
	d.wg.Wait()

	d.connected = false
	d.closed = true
	close(d.samples)

	if d.closer != nil {
		if err := d.closer(); err != nil {
			log.Printf("Error releasing hardware: %v", err)
		}
	}

	return nil
}

// Samples returns the channel for reading samples.
func (d *Local) Samples() <-chan RawSample {
	return d.samples
}

// Start queues the start command for the control loop.
func (d *Local) Start() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return ErrNotConnected
	}

	d.port.Send(engine.CmdStart)
	return nil
}

// IsConnected returns whether the device is currently connected.
func (d *Local) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// State returns the engine state.
func (d *Local) State() *engine.State {
	return d.ctl.State()
}

func (d *Local) loop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		default:
		}

		d.ctl.Poll()
		time.Sleep(d.poll)
	}
}
