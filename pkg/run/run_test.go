package run

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gofreefall/pkg/sample"
)

var elapsedMs = []int{0, 5, 10, 16, 23, 32, 44, 60, 81, 108, 142}

func makeRun(start time.Time, gates int) []sample.Sample {
	samples := make([]sample.Sample, 0, gates+1)
	for g := 0; g <= gates; g++ {
		samples = append(samples, sample.Sample{
			Timestamp: start.Add(time.Duration(elapsedMs[g]) * time.Millisecond),
			Gate:      g,
			Position:  float64(g) * 0.1,
			Time:      time.Duration(elapsedMs[g]) * time.Millisecond,
		})
	}
	return samples
}

func feed(r *Recorder, samples ...[]sample.Sample) {
	input := make(chan sample.Sample, 100)
	for _, run := range samples {
		for _, s := range run {
			input <- s
		}
	}
	close(input)
	r.ProcessSamples(input)
}

func TestRecorder_CompleteRun(t *testing.T) {
	r := New()
	start := time.Now()

	var completed []Run
	r.OnComplete(func(run Run) { completed = append(completed, run) })

	feed(r, makeRun(start, 10))

	runs := r.Runs()
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Complete())
	assert.Equal(t, start, runs[0].Started)
	assert.Equal(t, 142*time.Millisecond, runs[0].Duration())
	assert.Len(t, completed, 1)
	assert.Equal(t, 0, r.Aborted())

	_, inProgress := r.Current()
	assert.False(t, inProgress)
}

func TestRecorder_MergedGatesComplete(t *testing.T) {
	r := New()
	full := makeRun(time.Now(), 10)
	// Gates 2 and 3 were crossed before the loop drained: one report for both.
	merged := append(append([]sample.Sample{}, full[:2]...), full[3:]...)

	var completed []Run
	r.OnComplete(func(run Run) { completed = append(completed, run) })

	feed(r, merged, makeRun(time.Now(), 10))

	runs := r.Runs()
	require.Len(t, runs, 2)
	assert.True(t, runs[0].Complete())
	assert.Len(t, runs[0].Samples, Size-1)
	assert.Equal(t, 1, runs[0].Merged())
	assert.Equal(t, 0, runs[1].Merged())
	assert.Len(t, completed, 2)
	assert.Equal(t, 0, r.Aborted())
}

func TestRecorder_RestartDiscardsPartialRun(t *testing.T) {
	r := New()
	start := time.Now()

	input := make(chan sample.Sample, 100)
	for _, s := range makeRun(start, 4) {
		input <- s
	}
	for _, s := range makeRun(start.Add(time.Second), 10) {
		input <- s
	}
	close(input)
	r.ProcessSamples(input)

	runs := r.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, start.Add(time.Second), runs[0].Started)
	assert.Equal(t, 1, r.Aborted())
}

func TestRecorder_StraySamples(t *testing.T) {
	r := New()
	stray := makeRun(time.Now(), 3)[1:]

	var seen int
	r.OnSample(func(s sample.Sample) { seen++ })

	feed(r, stray)

	assert.Empty(t, r.Runs())
	assert.Equal(t, 3, r.Stray())
	assert.Equal(t, 0, seen, "stray samples are not reported")
}

func TestRecorder_CurrentIsCopy(t *testing.T) {
	r := New()
	r.processSample(makeRun(time.Now(), 0)[0])

	current, ok := r.Current()
	require.True(t, ok)
	require.Len(t, current.Samples, 1)

	current.Samples[0].Gate = 99
	again, _ := r.Current()
	assert.Equal(t, 0, again.Samples[0].Gate)
}

func TestRecorder_IncompleteAtShutdown(t *testing.T) {
	r := New()
	feed(r, makeRun(time.Now(), 7))

	assert.Empty(t, r.Runs())
	assert.Equal(t, 1, r.Aborted())
	_, ok := r.Current()
	assert.False(t, ok)
}

func TestRecorder_OnSampleOrder(t *testing.T) {
	r := New()

	var gates []int
	r.OnSample(func(s sample.Sample) { gates = append(gates, s.Gate) })

	feed(r, makeRun(time.Now(), 10), makeRun(time.Now(), 10))

	require.Len(t, gates, 2*Size)
	for i, g := range gates {
		assert.Equal(t, i%Size, g)
	}
	assert.Len(t, r.Runs(), 2)
}

func TestSaveLoad(t *testing.T) {
	r := New()
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	feed(r, makeRun(start, 10), makeRun(start.Add(time.Minute), 10))

	filename := filepath.Join(t.TempDir(), "runs.yaml")
	require.NoError(t, Save(filename, r.Runs()))

	loaded, err := Load(filename)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	for i, run := range loaded {
		want := r.Runs()[i]
		assert.True(t, run.Started.Equal(want.Started))
		require.Len(t, run.Samples, Size)
		assert.Equal(t, want.Samples[Size-1].Time, run.Samples[Size-1].Time)
		assert.Equal(t, want.Samples[Size-1].Gate, run.Samples[Size-1].Gate)
		assert.InDelta(t, want.Samples[Size-1].Position, run.Samples[Size-1].Position, 1e-9)
	}
}

func TestLoad_FileNotExists(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
