// Copyright 2024-2026 Aiku AI

package wsgate

import (
	"github.com/google/uuid"

	"github.com/aiku/gamerelay/pkg/relay"
)

// Frame types exchanged with game agents.
const (
	FrameHello     = "hello"
	FrameChat      = "chat"
	FramePlayers   = "players"
	FrameKeepalive = "keepalive"
)

// Frame is the JSON envelope for every websocket message.
//
// Agents open with a hello frame carrying their profile (and the shared
// token when one is configured), then send chat, players and keepalive
// frames. The gateway only ever sends chat frames back.
type Frame struct {
	Type    string          `json:"type"`
	Token   string          `json:"token,omitempty"`
	Profile *relay.Identity `json:"profile,omitempty"`

	// SenderID is absent for server messages.
	SenderID   *uuid.UUID `json:"sender_id,omitempty"`
	SenderName string     `json:"sender_name,omitempty"`
	Text       string     `json:"text,omitempty"`

	Players []relay.Identity `json:"players,omitempty"`
}
