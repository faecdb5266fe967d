package drop

// Device defines the interface for drop rigs (real, simulated or in-process).
type Device interface {
	Connect() error
	Close() error
	Start() error
	Samples() <-chan RawSample
	IsConnected() bool
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Local implements Device.
var _ Device = (*Local)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)
