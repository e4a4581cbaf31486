package input

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind names a client command.
type Kind string

const (
	KindKeyDown Kind = "key_down"
	KindKeyUp   Kind = "key_up"
	KindLook    Kind = "look"
	KindFire    Kind = "fire"
	KindLock    Kind = "lock"
	KindUnlock  Kind = "unlock"
	KindReset   Kind = "reset"
)

// ErrUnknownCommand is returned when a message carries an unsupported kind.
var ErrUnknownCommand = errors.New("input: unknown command")

// Command is a single player action.
type Command struct {
	Kind Kind    `json:"kind"`
	Code string  `json:"code,omitempty"`
	DX   float64 `json:"dx,omitempty"`
	DY   float64 `json:"dy,omitempty"`
}

// Droppable reports whether losing the command only degrades smoothness. Key, lock and
// reset transitions change held state and are never shed by the gate.
func (c Command) Droppable() bool {
	return c.Kind == KindLook || c.Kind == KindFire
}

// Envelope is the client to server wire message.
type Envelope struct {
	Seq      uint64  `json:"seq"`
	SentAtMs int64   `json:"sent_at_ms,omitempty"`
	Command  Command `json:"command"`
}

// SentAt converts the optional client timestamp.
func (e Envelope) SentAt() time.Time {
	if e.SentAtMs <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.SentAtMs)
}

// Frame builds the gate metadata for the envelope.
func (e Envelope) Frame(clientID string) Frame {
	return Frame{
		ClientID:   clientID,
		SequenceID: e.Seq,
		SentAt:     e.SentAt(),
		Droppable:  e.Command.Droppable(),
		Kind:       e.Command.Kind,
	}
}

// Decode parses a client message and rejects unknown command kinds.
func Decode(payload []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("decode command: %w", err)
	}
	switch envelope.Command.Kind {
	case KindKeyDown, KindKeyUp, KindLook, KindFire, KindLock, KindUnlock, KindReset:
		return envelope, nil
	default:
		return Envelope{}, fmt.Errorf("%w %q", ErrUnknownCommand, envelope.Command.Kind)
	}
}

// Encode serialises an envelope for clients and tests.
func Encode(envelope Envelope) ([]byte, error) {
	return json.Marshal(envelope)
}
