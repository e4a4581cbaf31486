package game

import (
	"context"
	"sync"
	"time"

	"neonrange/server/internal/logging"
	"neonrange/server/internal/simulation"
)

// FrameSink receives published snapshots. Implementations must not block.
type FrameSink interface {
	PublishFrame(Snapshot)
}

// FrameSinkFunc adapts a function into a FrameSink.
type FrameSinkFunc func(Snapshot)

// PublishFrame implements FrameSink.
func (f FrameSinkFunc) PublishFrame(snapshot Snapshot) {
	if f != nil {
		f(snapshot)
	}
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	TickRate     float64
	SnapshotRate float64
	Monitor      *simulation.TickMonitor
	Logger       *logging.Logger
}

// Runner drives a session on its own fixed-step loop and publishes frames.
type Runner struct {
	session       *Session
	loop          *simulation.Loop
	monitor       *simulation.TickMonitor
	logger        *logging.Logger
	snapshotEvery uint64

	mu     sync.RWMutex
	sinks  map[int]FrameSink
	nextID int
	ticks  uint64
	cancel context.CancelFunc
	once   sync.Once
}

// NewRunner wires a session to a simulation loop.
func NewRunner(session *Session, opts RunnerOptions) *Runner {
	tickRate := opts.TickRate
	if tickRate <= 0 {
		tickRate = 60
	}
	snapshotRate := opts.SnapshotRate
	if snapshotRate <= 0 || snapshotRate > tickRate {
		snapshotRate = tickRate
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	every := uint64(tickRate/snapshotRate + 0.5)
	if every == 0 {
		every = 1
	}
	r := &Runner{
		session:       session,
		monitor:       opts.Monitor,
		logger:        logger,
		snapshotEvery: every,
		sinks:         make(map[int]FrameSink),
	}
	r.loop = simulation.NewLoop(tickRate, r.tick)
	return r
}

// Session exposes the driven session.
func (r *Runner) Session() *Session {
	if r == nil {
		return nil
	}
	return r.session
}

// Subscribe attaches a sink and returns a function that detaches it.
func (r *Runner) Subscribe(sink FrameSink) func() {
	if r == nil || sink == nil {
		return func() {}
	}
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.sinks[id] = sink
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.sinks, id)
		r.mu.Unlock()
	}
}

// Start begins ticking until Stop is called or ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	if r == nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.loop.Start(ctx)
}

// Stop halts the loop and waits for the in-flight tick to finish.
func (r *Runner) Stop() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
		r.loop.Stop()
	})
}

func (r *Runner) tick(step time.Duration, now time.Time) {
	started := time.Now()
	//1.- Run the frame to completion before anything observes the session.
	r.session.Step(step, now)
	r.monitor.Observe(time.Since(started))

	r.ticks++
	if r.ticks%r.snapshotEvery != 0 {
		return
	}
	//2.- Drain events into one snapshot and hand it to every sink.
	snapshot := r.session.Snapshot(now)
	r.mu.RLock()
	sinks := make([]FrameSink, 0, len(r.sinks))
	for _, sink := range r.sinks {
		sinks = append(sinks, sink)
	}
	r.mu.RUnlock()
	for _, sink := range sinks {
		sink.PublishFrame(snapshot)
	}
}
