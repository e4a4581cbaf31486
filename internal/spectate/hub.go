package spectate

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"neonrange/server/internal/game"
	"neonrange/server/internal/logging"
)

const subscriberBuffer = 16

// ErrUnknownSession is returned when subscribing to a session the hub has not seen.
var ErrUnknownSession = errors.New("spectate: unknown session")

// Frame is one encoded snapshot ready for the wire.
type Frame struct {
	Tick    uint64
	Payload []byte
}

// Hub fans session snapshots out to spectator streams.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]map[uint64]chan Frame
	nextID   uint64
	dropped  uint64
	log      *logging.Logger
}

// NewHub constructs an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.L()
	}
	return &Hub{sessions: make(map[string]map[uint64]chan Frame), log: logger}
}

// Register makes a session available for spectating.
func (h *Hub) Register(sessionID string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[sessionID]; !ok {
		h.sessions[sessionID] = make(map[uint64]chan Frame)
	}
}

// Unregister removes a session and ends every stream watching it.
func (h *Hub) Unregister(sessionID string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.sessions[sessionID] {
		delete(h.sessions[sessionID], id)
		close(ch)
	}
	delete(h.sessions, sessionID)
}

// Known reports whether the session is registered.
func (h *Hub) Known(sessionID string) bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.sessions[sessionID]
	return ok
}

// Subscribe returns a channel of frames for the session and a cancel func.
// The channel is closed when the session is unregistered or the subscription cancelled.
func (h *Hub) Subscribe(ctx context.Context, sessionID string) (<-chan Frame, func(), error) {
	if h == nil {
		return nil, func() {}, errors.New("hub is nil")
	}
	ch := make(chan Frame, subscriberBuffer)

	h.mu.Lock()
	subscribers, ok := h.sessions[sessionID]
	if !ok {
		h.mu.Unlock()
		return nil, func() {}, ErrUnknownSession
	}
	h.nextID++
	id := h.nextID
	subscribers[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if sub, ok := h.sessions[sessionID][id]; ok {
				delete(h.sessions[sessionID], id)
				close(sub)
			}
			h.mu.Unlock()
		})
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return ch, cancel, nil
}

// Publish encodes the snapshot once and offers it to every subscriber without blocking.
func (h *Hub) Publish(sessionID string, snapshot game.Snapshot) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	subscribers := h.sessions[sessionID]
	if len(subscribers) == 0 {
		return
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		h.log.Warn("spectate encode failed", logging.Error(err), logging.String("session_id", sessionID))
		return
	}
	frame := Frame{Tick: snapshot.Tick, Payload: payload}
	for _, ch := range subscribers {
		select {
		case ch <- frame:
		default:
			h.dropped++
		}
	}
}

// Sink adapts the hub into a runner frame sink for one session.
func (h *Hub) Sink(sessionID string) game.FrameSink {
	return game.FrameSinkFunc(func(snapshot game.Snapshot) {
		h.Publish(sessionID, snapshot)
	})
}

// HubStats reports spectator counters.
type HubStats struct {
	Sessions int    `json:"sessions"`
	Watchers int    `json:"watchers"`
	Dropped  uint64 `json:"dropped"`
}

// Stats returns a point-in-time view of the hub.
func (h *Hub) Stats() HubStats {
	if h == nil {
		return HubStats{}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	stats := HubStats{Sessions: len(h.sessions), Dropped: h.dropped}
	for _, subscribers := range h.sessions {
		stats.Watchers += len(subscribers)
	}
	return stats
}
