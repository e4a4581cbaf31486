package timesync

import (
	"slices"
	"sync"
	"time"
)

const defaultWindow = 16

// Estimator tracks the offset between the local clock and the server clock from the
// server timestamps carried on inbound messages.
type Estimator struct {
	mu      sync.Mutex
	now     func() time.Time
	window  int
	samples []time.Duration
}

// NewEstimator keeps the newest window samples. A nil clock uses time.Now.
func NewEstimator(window int, now func() time.Time) *Estimator {
	if window <= 0 {
		window = defaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Estimator{now: now, window: window}
}

// Observe records a server timestamp received just now.
func (e *Estimator) Observe(serverMs int64) {
	if e == nil || serverMs <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	//1.- Each sample under-reads the true offset by the one-way latency of that message.
	sample := time.UnixMilli(serverMs).Sub(e.now())
	e.samples = append(e.samples, sample)
	if len(e.samples) > e.window {
		e.samples = e.samples[len(e.samples)-e.window:]
	}
}

// Offset returns server minus local time. The largest sample in the window came from the
// fastest delivery, so it is the tightest bound.
func (e *Estimator) Offset() time.Duration {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.samples) == 0 {
		return 0
	}
	return slices.Max(e.samples)
}

// ServerNow projects the local clock onto the server clock.
func (e *Estimator) ServerNow() time.Time {
	if e == nil {
		return time.Now()
	}
	return e.now().Add(e.Offset())
}

// Samples reports how many observations are in the window.
func (e *Estimator) Samples() int {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.samples)
}
