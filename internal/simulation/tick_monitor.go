package simulation

import (
	"sync"
	"time"
)

const defaultMonitorWindow = 600

// TickMetricsSnapshot summarises recent simulation step durations.
type TickMetricsSnapshot struct {
	// Samples counts every observed step since the monitor was created.
	Samples int
	// Average and Max cover the rolling window only.
	Average  time.Duration
	Max      time.Duration
	Last     time.Duration
	Overruns int
}

// MonitorOption customises a TickMonitor.
type MonitorOption func(*TickMonitor)

// WithWindow sets how many recent steps feed the average and max.
func WithWindow(size int) MonitorOption {
	return func(m *TickMonitor) {
		if size > 0 {
			m.window = make([]time.Duration, size)
		}
	}
}

// WithBudget counts steps slower than budget as overruns.
func WithBudget(budget time.Duration) MonitorOption {
	return func(m *TickMonitor) {
		m.budget = budget
	}
}

// TickMonitor keeps a rolling window of step durations. One monitor may be shared by many
// session loops.
type TickMonitor struct {
	mu       sync.Mutex
	window   []time.Duration
	next     int
	filled   int
	samples  int
	overruns int
	last     time.Duration
	budget   time.Duration
}

// NewTickMonitor constructs an empty monitor.
func NewTickMonitor(opts ...MonitorOption) *TickMonitor {
	m := &TickMonitor{}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if len(m.window) == 0 {
		m.window = make([]time.Duration, defaultMonitorWindow)
	}
	return m
}

// Observe records the duration of a completed step. Non-positive durations are ignored.
func (m *TickMonitor) Observe(duration time.Duration) {
	if m == nil || duration <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.window[m.next] = duration
	m.next = (m.next + 1) % len(m.window)
	if m.filled < len(m.window) {
		m.filled++
	}
	m.samples++
	m.last = duration
	if m.budget > 0 && duration > m.budget {
		m.overruns++
	}
}

// Snapshot aggregates the current window.
func (m *TickMonitor) Snapshot() TickMetricsSnapshot {
	if m == nil {
		return TickMetricsSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := TickMetricsSnapshot{Samples: m.samples, Last: m.last, Overruns: m.overruns}
	if m.filled == 0 {
		return snapshot
	}
	var total time.Duration
	for _, d := range m.window[:m.filled] {
		total += d
		snapshot.Max = max(snapshot.Max, d)
	}
	snapshot.Average = total / time.Duration(m.filled)
	return snapshot
}
