package run

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/itohio/gofreefall/pkg/sample"
)

// TestRecorder_GracefulShutdown_NoCallbacksAfterClose tests that the recorder
// stops sending callbacks after the input channel is closed.
func TestRecorder_GracefulShutdown_NoCallbacksAfterClose(t *testing.T) {
	r := New()

	var callbackCount atomic.Int32
	r.OnSample(func(s sample.Sample) { callbackCount.Add(1) })

	input := make(chan sample.Sample, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ProcessSamples(input)
	}()

	for _, s := range makeRun(time.Now(), 2) {
		input <- s
	}
	close(input)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ProcessSamples did not return after input closed")
	}
	assert.Equal(t, int32(3), callbackCount.Load())

	// A late sample must not reach callbacks.
	r.processSample(makeRun(time.Now(), 0)[0])
	assert.Equal(t, int32(3), callbackCount.Load(), "no callbacks after shutdown")

	// Callbacks resume once reset.
	r.ResetShutdown()
	r.processSample(makeRun(time.Now(), 0)[0])
	assert.Equal(t, int32(4), callbackCount.Load())
}
