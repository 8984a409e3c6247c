package dispatch

import (
	"sync"
	"time"
)

// windowMargin is added to computed waits so the oldest entry has
// definitely aged out by the time the worker retries.
const windowMargin = 100 * time.Millisecond

// RateWindow is a sliding window of request issue times. At most limit
// entries may be younger than span at the moment a new one is admitted.
type RateWindow struct {
	mu     sync.Mutex
	limit  int
	span   time.Duration
	issued []time.Time
}

// NewRateWindow creates a window admitting limit requests per span.
func NewRateWindow(limit int, span time.Duration) *RateWindow {
	if limit < 1 {
		limit = 1
	}
	return &RateWindow{
		limit:  limit,
		span:   span,
		issued: make([]time.Time, 0, limit),
	}
}

// TryAcquire evicts expired entries and, if a slot is free, records now and
// returns ok. Otherwise it returns how long to wait before trying again.
func (w *RateWindow) TryAcquire(now time.Time) (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(now)
	if len(w.issued) < w.limit {
		w.issued = append(w.issued, now)
		return 0, true
	}

	wait := w.issued[0].Add(w.span).Sub(now) + windowMargin
	if wait < windowMargin {
		wait = windowMargin
	}
	return wait, false
}

// Len reports how many entries are still inside the window at now.
func (w *RateWindow) Len(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(now)
	return len(w.issued)
}

// evict drops entries older than span. Entries are appended in time order,
// so the expired ones form a prefix.
func (w *RateWindow) evict(now time.Time) {
	n := 0
	for n < len(w.issued) && now.Sub(w.issued[n]) > w.span {
		n++
	}
	if n > 0 {
		w.issued = append(w.issued[:0], w.issued[n:]...)
	}
}
