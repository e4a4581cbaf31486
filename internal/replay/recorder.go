package replay

import (
	"encoding/json"
	"sync"

	"neonrange/server/internal/game"
	"neonrange/server/internal/logging"
)

const defaultRecorderBuffer = 128

// Stats summarises recorder health for monitoring endpoints.
type Stats struct {
	Frames  uint64 `json:"frames"`
	Events  uint64 `json:"events"`
	Dropped uint64 `json:"dropped"`
	Errors  uint64 `json:"errors"`
}

// Recorder persists published session frames through a Writer on its own goroutine.
type Recorder struct {
	writer *Writer
	logger *logging.Logger
	queue  chan game.Snapshot
	done   chan struct{}

	mu     sync.Mutex
	closed bool
	stats  Stats
}

// NewRecorder starts draining frames into writer.
func NewRecorder(writer *Writer, logger *logging.Logger, buffer int) *Recorder {
	if logger == nil {
		logger = logging.L()
	}
	if buffer <= 0 {
		buffer = defaultRecorderBuffer
	}
	r := &Recorder{
		writer: writer,
		logger: logger,
		queue:  make(chan game.Snapshot, buffer),
		done:   make(chan struct{}),
	}
	go r.drain()
	return r
}

// PublishFrame implements game.FrameSink. Frames are dropped when the disk falls behind.
func (r *Recorder) PublishFrame(snapshot game.Snapshot) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- snapshot:
	default:
		r.stats.Dropped++
	}
}

func (r *Recorder) drain() {
	defer close(r.done)
	for snapshot := range r.queue {
		r.persist(snapshot)
	}
}

func (r *Recorder) persist(snapshot game.Snapshot) {
	//1.- Events go to the event log individually so tooling can scan them without frames.
	for _, event := range snapshot.Events {
		payload, err := json.Marshal(event)
		if err == nil {
			err = r.writer.AppendEvent(snapshot.Tick, snapshot.ElapsedMs, string(event.Type), payload)
		}
		r.count(err, false)
	}
	//2.- The frame keeps the complete snapshot including its events.
	payload, err := json.Marshal(snapshot)
	if err == nil {
		err = r.writer.AppendFrame(snapshot.Tick, snapshot.ElapsedMs, payload)
	}
	r.count(err, true)
}

func (r *Recorder) count(err error, frame bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.stats.Errors++
		r.logger.Warn("replay append failed", logging.Error(err))
		return
	}
	if frame {
		r.stats.Frames++
	} else {
		r.stats.Events++
	}
}

// Stats returns a copy of the recorder counters.
func (r *Recorder) Stats() Stats {
	if r == nil {
		return Stats{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Directory returns the bundle directory being written.
func (r *Recorder) Directory() string {
	if r == nil {
		return ""
	}
	return r.writer.Directory()
}

// Close drains queued frames, stamps the session result and closes the bundle.
func (r *Recorder) Close(subject string, summary game.Summary) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
	r.writer.SetResult(subject, summary.Score, summary.Shots, summary.Hits)
	return r.writer.Close()
}
