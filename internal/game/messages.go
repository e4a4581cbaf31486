package game

import "neonrange/server/internal/world"

// MessageType tags server to client messages.
type MessageType string

const (
	MessageWelcome MessageType = "welcome"
	MessageFrame   MessageType = "frame"
	MessageError   MessageType = "error"
)

// ServerMessage is the envelope for everything the server sends over the socket.
type ServerMessage struct {
	Type         MessageType    `json:"type"`
	ServerTimeMs int64          `json:"server_time_ms,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
	Subject      string         `json:"subject,omitempty"`
	TickRate     float64        `json:"tick_rate,omitempty"`
	SnapshotRate float64        `json:"snapshot_rate,omitempty"`
	Columns      []world.Column `json:"columns,omitempty"`
	Snapshot     *Snapshot      `json:"snapshot,omitempty"`
	Reason       string         `json:"reason,omitempty"`
}

// Welcome builds the first message of a session.
func Welcome(session *Session, subject string, tickRate, snapshotRate float64) ServerMessage {
	return ServerMessage{
		Type:         MessageWelcome,
		SessionID:    session.ID(),
		Subject:      subject,
		TickRate:     tickRate,
		SnapshotRate: snapshotRate,
		Columns:      session.Columns(),
	}
}

// FrameMessage wraps a snapshot for delivery.
func FrameMessage(snapshot Snapshot) ServerMessage {
	return ServerMessage{Type: MessageFrame, Snapshot: &snapshot}
}
