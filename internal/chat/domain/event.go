package domain

import "encoding/json"

// ConnState is the realtime channel connection state. There is exactly
// one instance per app session, owned by the transport manager.
type ConnState int32

const (
	// StateDisconnected no channel, initial and terminal state
	StateDisconnected ConnState = iota
	// StateConnecting first handshake in progress
	StateConnecting
	// StateConnected channel established, events flowing
	StateConnected
	// StateReconnecting channel dropped, bounded retries in progress
	StateReconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// Event names carried on the realtime channel.
const (
	EventMessage = "message"
	EventOnline  = "online"
	EventOffline = "offline"
)

// Event is the JSON envelope exchanged on the realtime channel.
type Event struct {
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Presence is the payload of online/offline events.
type Presence struct {
	UserID string `json:"user_id"`
}
