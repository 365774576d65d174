// Package types defines the wire messages exchanged with browser clients
// over the websocket.
package types

import "github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/session"

// ClientMessage is what a client may send during play.
//
// SubmitChoice:
//
//	slot: index of the open slot to lock the revealed item into
//
// StartRound: {} (host only)
type ClientMessage struct {
	Type string `json:"type"`
	Slot *int   `json:"slot,omitempty"`
}

// ServerMessage wraps session events for the wire.
// Type is "StateSnapshot" | "Error" | "RoomClosed".
type ServerMessage struct {
	Type    string        `json:"type"`
	Version int           `json:"version,omitempty"`
	View    *session.View `json:"view,omitempty"`
	Error   string        `json:"error,omitempty"`
}
