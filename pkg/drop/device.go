package drop

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/itohio/gofreefall/pkg/engine"
)

const (
	// DefaultBaudRate is the firmware UART rate.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the samples channel buffer.
	DefaultBufferSize = 100
)

var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
)

// RawSample is one report line from the rig.
type RawSample struct {
	Timestamp time.Time // Host receive time
	Distance  uint16    // Gate spacing units, engine.Spacing per gate
	Elapsed   uint32    // Milliseconds since release
}

// Baseline reports whether s is the t=0 sample that opens a run.
func (s RawSample) Baseline() bool {
	return s.Distance == 0 && s.Elapsed == 0
}

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial represents a connection to the rig MCU.
type Serial struct {
	port     string
	baudRate int
	bufSize  int

	conn      io.ReadWriteCloser
	samples   chan RawSample
	done      chan struct{} // Closed by the reader after it closes samples
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	closed    bool
}

// New creates a new Serial device with the specified port, baud rate, and buffer size.
func New(port string, baudRate int, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:      port,
		baudRate:  baudRate,
		bufSize:   bufSize,
		samples:   make(chan RawSample, bufSize),
		ctx:       ctx,
		cancel:    cancel,
		connected: false,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// Connect connects to the serial port and starts reading samples.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected || d.closed {
		return ErrAlreadyConnected
	}

	mode := &serial.Mode{
		BaudRate: d.baudRate,
	}

	port, err := serial.Open(d.port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	d.attach(port)

	return nil
}

// attach starts reading reports from conn. The reader owns the samples
// channel and closes it when it stops. Must be called with d.mu held.
func (d *Serial) attach(conn io.ReadWriteCloser) {
	d.conn = conn
	d.connected = true
	d.done = make(chan struct{})

	go func() {
		defer close(d.done)
		defer close(d.samples)
		readSamples(d.ctx, conn, d.samples)
	}()
}

// Close closes the connection and waits for the reader to close the samples
// channel. A closed Serial cannot be reconnected.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.cancel()

	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			log.Printf("Error closing serial port: %v", err)
		}
		d.conn = nil
	}
	<-d.done

	d.connected = false
	d.closed = true

	return nil
}

// Samples returns the channel for reading samples.
func (d *Serial) Samples() <-chan RawSample {
	return d.samples
}

// Start sends the start command. The rig releases the object and reports a
// 0:0 baseline followed by one sample per gate.
func (d *Serial) Start() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return ErrNotConnected
	}

	if _, err := d.conn.Write([]byte{engine.CmdStart}); err != nil {
		return fmt.Errorf("failed to send start command: %w", err)
	}

	return nil
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// readSamples reads report lines from r and parses them into RawSample.
func readSamples(ctx context.Context, r io.Reader, samples chan<- RawSample) {
	scanner := bufio.NewScanner(r)
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if !scanner.Scan() {
				// Scanner stopped (EOF or error)
				if err := scanner.Err(); err != nil && ctx.Err() == nil {
					log.Printf("Error reading reports: %v", err)
				}
				return
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			sample, err := parseLine(line)
			if err != nil {
				log.Printf("Failed to parse line '%s': %v", line, err)
				continue
			}

			// Send sample to channel (non-blocking)
			select {
			case samples <- sample:
			case <-ctx.Done():
				return
			default:
				log.Printf("Samples channel full, dropping sample")
			}
		}
	}
}

// parseLine parses a report line into a RawSample.
// Format: distance:elapsed#
// Example: 30:16#
func parseLine(line string) (RawSample, error) {
	body, ok := strings.CutSuffix(line, string(engine.EndMark))
	if !ok {
		return RawSample{}, fmt.Errorf("invalid line format: missing '%c' terminator", engine.EndMark)
	}

	parts := strings.Split(body, string(engine.Separator))
	if len(parts) != 2 {
		return RawSample{}, fmt.Errorf("invalid line format: expected 2 '%c'-separated values, got %d", engine.Separator, len(parts))
	}

	distance, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return RawSample{}, fmt.Errorf("invalid distance: %w", err)
	}
	if distance%engine.Spacing != 0 || distance > engine.Budget*engine.Spacing {
		return RawSample{}, fmt.Errorf("distance out of range: %d", distance)
	}

	elapsed, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return RawSample{}, fmt.Errorf("invalid elapsed time: %w", err)
	}

	return RawSample{
		Timestamp: time.Now(),
		Distance:  uint16(distance),
		Elapsed:   uint32(elapsed),
	}, nil
}
