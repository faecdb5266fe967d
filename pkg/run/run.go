package run

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itohio/gofreefall/pkg/engine"
	"github.com/itohio/gofreefall/pkg/sample"
)

// Size is the number of samples in a run where every gate got its own
// report: the baseline plus one per gate. Crossings closer together than a
// loop iteration share a report, so a complete run may be shorter.
const Size = engine.Budget + 1

var _ Runner = (*Recorder)(nil)

// Run is one drop.
type Run struct {
	Started time.Time       `yaml:"started"`
	Samples []sample.Sample `yaml:"samples"`
}

// Complete reports whether the last gate was crossed.
func (r Run) Complete() bool {
	n := len(r.Samples)
	return n > 0 && r.Samples[n-1].Gate >= engine.Budget
}

// Merged returns how many gates share a report with the gate after them.
func (r Run) Merged() int {
	if len(r.Samples) == 0 {
		return 0
	}
	return r.Samples[len(r.Samples)-1].Gate + 1 - len(r.Samples)
}

// Duration returns the time of the last sample.
func (r Run) Duration() time.Duration {
	if len(r.Samples) == 0 {
		return 0
	}
	return r.Samples[len(r.Samples)-1].Time
}

// Runner groups a sample stream into runs.
type Runner interface {
	ProcessSamples(input <-chan sample.Sample)
	Runs() []Run                    // Completed runs, oldest first
	Current() (Run, bool)           // Run in progress, if any
	OnComplete(func(run Run))       // Register callback for completed runs
	OnSample(func(s sample.Sample)) // Register callback for every accepted sample
}

// Recorder implements Runner.
// A baseline sample opens a run, replacing one still in progress. Samples
// arriving outside a run are dropped.
type Recorder struct {
	mu      sync.RWMutex
	runs    []Run
	current *Run
	aborted int
	stray   int

	onComplete []func(run Run)
	onSample   []func(s sample.Sample)
	cbMu       sync.RWMutex

	// Set when the input channel closes, prevents further callbacks
	shutdown bool
}

// New creates a new Recorder.
func New() *Recorder {
	return &Recorder{}
}

// ProcessSamples consumes input until it is closed.
func (r *Recorder) ProcessSamples(input <-chan sample.Sample) {
	for s := range input {
		r.processSample(s)
	}

	r.mu.Lock()
	r.shutdown = true
	if r.current != nil {
		r.aborted++
		r.current = nil
	}
	r.mu.Unlock()
}

func (r *Recorder) processSample(s sample.Sample) {
	r.mu.Lock()

	if s.Baseline() {
		if r.current != nil {
			log.Printf("Run restarted after %d samples", len(r.current.Samples))
			r.aborted++
		}
		r.current = &Run{
			Started: s.Timestamp,
			Samples: make([]sample.Sample, 0, Size),
		}
	} else if r.current == nil {
		r.stray++
		r.mu.Unlock()
		log.Printf("Dropping sample outside a run: gate %d at %v", s.Gate, s.Time)
		return
	}

	r.current.Samples = append(r.current.Samples, s)

	var completed *Run
	if r.current.Complete() {
		completed = r.current
		r.runs = append(r.runs, *completed)
		r.current = nil
	}

	shouldNotify := !r.shutdown
	r.mu.Unlock()

	if !shouldNotify {
		return
	}
	r.notifySample(s)
	if completed != nil {
		r.notifyComplete(copyRun(*completed))
	}
}

// Runs returns a copy of the completed runs.
func (r *Recorder) Runs() []Run {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Run, len(r.runs))
	for i, run := range r.runs {
		result[i] = copyRun(run)
	}
	return result
}

// Current returns a copy of the run in progress.
func (r *Recorder) Current() (Run, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.current == nil {
		return Run{}, false
	}
	return copyRun(*r.current), true
}

// Aborted returns how many runs were restarted or cut off before completing.
func (r *Recorder) Aborted() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.aborted
}

// Stray returns how many samples arrived outside a run.
func (r *Recorder) Stray() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stray
}

// OnComplete registers a callback invoked with every completed run.
// The callback should return quickly.
func (r *Recorder) OnComplete(callback func(run Run)) {
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	r.onComplete = append(r.onComplete, callback)
}

// OnSample registers a callback invoked with every sample that belongs to a run.
func (r *Recorder) OnSample(callback func(s sample.Sample)) {
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	r.onSample = append(r.onSample, callback)
}

// ResetShutdown allows callbacks again. Call it before feeding a new input.
func (r *Recorder) ResetShutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdown = false
}

func (r *Recorder) notifySample(s sample.Sample) {
	r.cbMu.RLock()
	callbacks := make([]func(sample.Sample), len(r.onSample))
	copy(callbacks, r.onSample)
	r.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(s)
		}
	}
}

func (r *Recorder) notifyComplete(run Run) {
	r.cbMu.RLock()
	callbacks := make([]func(Run), len(r.onComplete))
	copy(callbacks, r.onComplete)
	r.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(run)
		}
	}
}

func copyRun(run Run) Run {
	samples := make([]sample.Sample, len(run.Samples))
	copy(samples, run.Samples)
	run.Samples = samples
	return run
}

// Save writes runs to a YAML file.
func Save(filename string, runs []Run) error {
	data, err := yaml.Marshal(struct {
		Runs []Run `yaml:"runs"`
	}{runs})
	if err != nil {
		return fmt.Errorf("failed to marshal runs: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write runs file: %w", err)
	}

	return nil
}

// Load reads runs written by Save.
func Load(filename string) ([]Run, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read runs file: %w", err)
	}

	var file struct {
		Runs []Run `yaml:"runs"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse runs file: %w", err)
	}

	return file.Runs, nil
}
