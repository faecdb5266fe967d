package drop

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    RawSample
		wantErr bool
	}{
		{
			name: "valid line - baseline",
			line: "0:0#",
			want: RawSample{Distance: 0, Elapsed: 0},
		},
		{
			name: "valid line - first gate",
			line: "10:5#",
			want: RawSample{Distance: 10, Elapsed: 5},
		},
		{
			name: "valid line - last gate",
			line: "100:142#",
			want: RawSample{Distance: 100, Elapsed: 142},
		},
		{
			name: "valid line - elapsed wrapped near max",
			line: "30:4294967295#",
			want: RawSample{Distance: 30, Elapsed: 4294967295},
		},
		{
			name:    "invalid - missing end mark",
			line:    "10:5",
			wantErr: true,
		},
		{
			name:    "invalid - missing separator",
			line:    "105#",
			wantErr: true,
		},
		{
			name:    "invalid - too many fields",
			line:    "10:5:7#",
			wantErr: true,
		},
		{
			name:    "invalid - non-numeric distance",
			line:    "ab:5#",
			wantErr: true,
		},
		{
			name:    "invalid - non-numeric elapsed",
			line:    "10:ab#",
			wantErr: true,
		},
		{
			name:    "invalid - negative elapsed",
			line:    "10:-5#",
			wantErr: true,
		},
		{
			name:    "invalid - distance not a gate multiple",
			line:    "15:5#",
			wantErr: true,
		},
		{
			name:    "invalid - distance beyond last gate",
			line:    "110:5#",
			wantErr: true,
		},
		{
			name:    "invalid - elapsed overflows 32 bits",
			line:    "10:4294967296#",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want.Distance, got.Distance)
				assert.Equal(t, tt.want.Elapsed, got.Elapsed)
				assert.False(t, got.Timestamp.IsZero())
			}
		})
	}
}

func TestRawSample_Baseline(t *testing.T) {
	assert.True(t, RawSample{}.Baseline())
	assert.False(t, RawSample{Distance: 10}.Baseline())
	assert.False(t, RawSample{Elapsed: 1}.Baseline())
}

func TestNew(t *testing.T) {
	dev := New("/dev/ttyACM0", 115200, 100)
	assert.NotNil(t, dev)
	assert.Equal(t, "/dev/ttyACM0", dev.port)
	assert.Equal(t, 115200, dev.baudRate)
	assert.Equal(t, 100, dev.bufSize)
	assert.NotNil(t, dev.samples)
	assert.False(t, dev.IsConnected())
}

func TestNew_Defaults(t *testing.T) {
	dev := New("/dev/ttyACM0", 0, 0)
	assert.NotNil(t, dev)
	assert.Equal(t, DefaultBaudRate, dev.baudRate)
	assert.Equal(t, DefaultBufferSize, dev.bufSize)
}

func TestSerial_StartNotConnected(t *testing.T) {
	dev := New("/dev/ttyACM0", 0, 0)
	assert.ErrorIs(t, dev.Start(), ErrNotConnected)
	assert.NoError(t, dev.Close(), "closing an unconnected device is a no-op")
}

func TestReadSamples(t *testing.T) {
	stream := "0:0#\r\n10:5#\r\ngarbage\r\n\r\n20:10#\r\n"
	samples := make(chan RawSample, 10)

	readSamples(context.Background(), strings.NewReader(stream), samples)
	close(samples)

	var got []RawSample
	for s := range samples {
		got = append(got, s)
	}

	require.Len(t, got, 3, "malformed and empty lines are skipped")
	assert.True(t, got[0].Baseline())
	assert.Equal(t, uint16(10), got[1].Distance)
	assert.Equal(t, uint32(5), got[1].Elapsed)
	assert.Equal(t, uint16(20), got[2].Distance)
	assert.Equal(t, uint32(10), got[2].Elapsed)
}

func TestReadSamples_FullChannelDrops(t *testing.T) {
	stream := "0:0#\r\n10:5#\r\n20:10#\r\n"
	samples := make(chan RawSample, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		readSamples(context.Background(), strings.NewReader(stream), samples)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("readSamples blocked on a full channel")
	}

	assert.Len(t, samples, 1)
	assert.True(t, (<-samples).Baseline())
}

// pipeConn is a serial connection fed from the test through a pipe.
type pipeConn struct {
	*io.PipeReader
	writes chan []byte
}

func (c *pipeConn) Write(p []byte) (int, error) {
	c.writes <- append([]byte(nil), p...)
	return len(p), nil
}

func newPipeConn() (*pipeConn, *io.PipeWriter) {
	pr, pw := io.Pipe()
	return &pipeConn{PipeReader: pr, writes: make(chan []byte, 10)}, pw
}

func TestSerial_StartWritesCommand(t *testing.T) {
	dev := New("/dev/ttyACM0", 0, 0)
	conn, pw := newPipeConn()
	defer pw.Close()

	dev.mu.Lock()
	dev.attach(conn)
	dev.mu.Unlock()
	defer dev.Close()

	require.NoError(t, dev.Start())
	assert.Equal(t, []byte{'S'}, <-conn.writes)
	assert.ErrorIs(t, dev.Connect(), ErrAlreadyConnected)
}

// TestSerial_CloseWhileStreaming closes the device while reports keep
// arriving. The samples channel must close exactly once, after the reader
// has stopped sending.
func TestSerial_CloseWhileStreaming(t *testing.T) {
	for i := 0; i < 20; i++ {
		dev := New("/dev/ttyACM0", 0, 1)
		conn, pw := newPipeConn()

		dev.mu.Lock()
		dev.attach(conn)
		dev.mu.Unlock()

		go func() {
			for {
				if _, err := pw.Write([]byte("10:5#\r\n")); err != nil {
					return
				}
			}
		}()

		// Let the channel fill so the reader sits in its send select.
		<-dev.Samples()
		time.Sleep(time.Millisecond)

		done := make(chan struct{})
		go func() {
			defer close(done)
			assert.NoError(t, dev.Close())
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Close did not return")
		}

		for range dev.Samples() {
		}
		assert.False(t, dev.IsConnected())
		assert.ErrorIs(t, dev.Connect(), ErrAlreadyConnected, "closed device cannot reconnect")
	}
}
