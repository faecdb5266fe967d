// Package gpio runs the timing engine on a Linux single-board computer. The
// gate sensor and the magnet are character device lines; the millisecond
// clock is a software ticker.
package gpio

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Consumer labels the lines this package requests.
const Consumer = "freefall"

var ErrNotSupported = errors.New("gpio: not supported on this platform (requires Linux)")

// TickerTimer stands in for a hardware countdown timer: while enabled it
// calls the overflow handler once per period.
type TickerTimer struct {
	period  time.Duration
	enabled atomic.Bool
	count   atomic.Uint32
	handler func()

	once   sync.Once
	closed sync.Once
	stop   chan struct{}
	done   chan struct{}
}

// NewTickerTimer returns a stopped timer firing every period.
func NewTickerTimer(period time.Duration) *TickerTimer {
	if period <= 0 {
		period = time.Millisecond
	}
	return &TickerTimer{
		period: period,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (t *TickerTimer) Enable() {
	t.once.Do(func() { go t.run() })
	t.enabled.Store(true)
}

func (t *TickerTimer) Disable() { t.enabled.Store(false) }

// Load records the reload value. The period is fixed by the ticker.
func (t *TickerTimer) Load(count uint16) { t.count.Store(uint32(count)) }

// OnOverflow must be called before the first Enable.
func (t *TickerTimer) OnOverflow(handler func()) { t.handler = handler }

// Close stops the ticker goroutine. The timer cannot be enabled again.
func (t *TickerTimer) Close() error {
	t.closed.Do(func() {
		// Never started: nothing will close done.
		t.once.Do(func() { close(t.done) })
		close(t.stop)
	})
	<-t.done
	return nil
}

func (t *TickerTimer) run() {
	defer close(t.done)

	ticker := time.NewTicker(t.period)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if t.enabled.Load() && t.handler != nil {
				t.handler()
			}
		}
	}
}
