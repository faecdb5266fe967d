package drop

import (
	"context"
	"time"

	"github.com/chewxy/math32"

	"github.com/itohio/gofreefall/pkg/config"
	"github.com/itohio/gofreefall/pkg/engine"
)

// step is the granularity the simulation waits on the engine with.
const step = 50 * time.Microsecond

// Mock is a Local engine on simulated hardware with an object that falls
// under gravity whenever the magnet releases it.
type Mock struct {
	*Local

	cfg     *config.MockConfig
	spacing float32 // metres between gates

	timer  *engine.SimTimer
	sensor *engine.SimEdge

	// released carries the timer load count seen at the moment of release.
	released chan uint32
}

// NewMock creates a simulated rig. spacing is the gate spacing in metres.
func NewMock(cfg *config.MockConfig, spacing float64) *Mock {
	def := config.Default()
	if cfg == nil {
		cfg = &def.Mock
	}
	if spacing <= 0 {
		spacing = def.Measurement.Spacing
	}

	m := &Mock{
		cfg:      cfg,
		spacing:  float32(spacing),
		timer:    &engine.SimTimer{},
		sensor:   &engine.SimEdge{},
		released: make(chan uint32, 1),
	}

	magnet := &engine.SimPin{}
	magnet.OnChange(m.magnetChanged)

	m.Local = NewLocal(m.timer, m.sensor, magnet, nil)
	m.workers = append(m.workers, m.simulate)
	return m
}

// CrossingTimes returns when, in ms after release, the object passes each gate.
func (m *Mock) CrossingTimes() []uint32 {
	g := m.cfg.Gravity
	delay := float32(m.cfg.ReleaseDelay.Seconds())

	times := make([]uint32, engine.Budget)
	for k := range times {
		h := m.cfg.DropHeight + float32(k)*m.spacing
		t := delay + math32.Sqrt(2*h/g)
		times[k] = uint32(math32.Floor(t*1000 + 0.5))
	}
	return times
}

// magnetChanged runs inside the control loop before the run is rearmed.
func (m *Mock) magnetChanged(high bool) {
	if high != engine.Release {
		return
	}
	loads := m.timer.Loads()
	select {
	case m.released <- loads:
	default:
		// An earlier release is still queued; either rearm satisfies it.
	}
}

func (m *Mock) simulate(ctx context.Context) {
	for {
		var loads uint32
		select {
		case <-ctx.Done():
			return
		case loads = <-m.released:
		}

		for restart := true; restart; {
			loads, restart = m.drop(ctx, loads)
		}
	}
}

// drop plays one fall. It returns true together with the new load count if
// the object was released again before the fall finished.
func (m *Mock) drop(ctx context.Context, loads uint32) (uint32, bool) {
	// Wait until the engine has reloaded and started the clock.
	for m.timer.Loads() == loads || !m.timer.Enabled() {
		if next, ok := m.sleep(ctx, step); ok {
			return next, true
		}
		if ctx.Err() != nil {
			return 0, false
		}
	}

	var at uint32
	for _, t := range m.CrossingTimes() {
		gap := t - at
		at = t

		pace := time.Duration(0)
		if m.cfg.Realtime {
			pace = time.Duration(gap) * time.Millisecond
		}
		if next, ok := m.sleep(ctx, pace); ok {
			return next, true
		}
		if ctx.Err() != nil {
			return 0, false
		}

		m.timer.Advance(int(gap))
		m.sensor.Pulse()

		// Gates are milliseconds apart on a real rig, far longer than a
		// loop iteration, so every crossing gets its own report.
		for m.State().Pending() {
			if next, ok := m.sleep(ctx, step); ok {
				return next, true
			}
			if ctx.Err() != nil {
				return 0, false
			}
		}
	}
	return 0, false
}

// sleep waits for d and returns early with the load count if the object is
// released again meanwhile.
func (m *Mock) sleep(ctx context.Context, d time.Duration) (uint32, bool) {
	if d <= 0 {
		select {
		case loads := <-m.released:
			return loads, true
		default:
			return 0, false
		}
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case loads := <-m.released:
		return loads, true
	case <-t.C:
	}
	return 0, false
}
