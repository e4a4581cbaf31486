package game

import (
	"sync"

	"neonrange/server/internal/physics"
)

// EventType names a gameplay event.
type EventType string

const (
	EventShotFired     EventType = "shot_fired"
	EventTargetHit     EventType = "target_hit"
	EventTargetRemoved EventType = "target_removed"
	EventSessionReset  EventType = "session_reset"
)

// Event is a discrete gameplay occurrence delivered alongside frames.
type Event struct {
	Type     EventType     `json:"type"`
	Tick     uint64        `json:"tick"`
	TargetID int           `json:"target_id,omitempty"`
	Score    int           `json:"score"`
	Point    *physics.Vec3 `json:"point,omitempty"`
}

// EventStore buffers gameplay events until the next published frame drains them.
type EventStore struct {
	mu     sync.Mutex
	events []Event
}

// NewEventStore constructs an event buffer.
func NewEventStore() *EventStore {
	return &EventStore{}
}

// Add enqueues a gameplay event for the next frame.
func (s *EventStore) Add(event Event) {
	if s == nil || event.Type == "" {
		return
	}
	s.mu.Lock()
	//1.- Append while holding the mutex to preserve ordering.
	s.events = append(s.events, event)
	s.mu.Unlock()
}

// Consume flushes and returns the queued events.
func (s *EventStore) Consume() []Event {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	//1.- Swap out the current slice with a fresh buffer for the next frame.
	events := s.events
	s.events = nil
	s.mu.Unlock()
	return events
}
