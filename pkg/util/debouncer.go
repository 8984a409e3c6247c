package util

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Debouncer fires once after a quiet period. Every Reset pushes the deadline
// back by the full duration. It is safe for concurrent use.
//
// Example usage:
//
//	idle := NewDebouncer(clock, 100*time.Millisecond)
//	defer idle.Stop()
//
//	for {
//	    select {
//	    case chunk := <-chunks:
//	        buffer(chunk)
//	        idle.Reset()
//	    case <-idle.C():
//	        flush() // no new audio for 100ms
//	    }
//	}
type Debouncer struct {
	duration time.Duration
	timer    clockwork.Timer
	mu       sync.Mutex
	stopped  bool
}

// NewDebouncer creates a debouncer that is already armed.
func NewDebouncer(clock clockwork.Clock, duration time.Duration) *Debouncer {
	return &Debouncer{
		duration: duration,
		timer:    clock.NewTimer(duration),
	}
}

// Reset re-arms the timer. A stopped debouncer ignores Reset.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if !d.timer.Stop() {
		select {
		case <-d.timer.Chan():
		default:
		}
	}
	d.timer.Reset(d.duration)
}

// C returns the channel the deadline is delivered on.
func (d *Debouncer) C() <-chan time.Time {
	return d.timer.Chan()
}

// Stop disarms the debouncer for good. Calling it twice is fine.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.stopped {
		d.timer.Stop()
		d.stopped = true
	}
}
