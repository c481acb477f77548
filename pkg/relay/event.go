// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"github.com/google/uuid"
)

// Sentinel names used when a chat sender cannot be resolved.
const (
	ServerName  = "Server"
	UnknownName = "Unknown"
)

// Identity is a game account: a stable id plus the display name other
// players see. ID is uuid.Nil for identity-less senders such as the server.
type Identity struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// HasID reports whether the identity carries an account id.
func (i Identity) HasID() bool {
	return i.ID != uuid.Nil
}

func (i Identity) String() string {
	if !i.HasID() {
		return i.Name
	}
	return i.Name + " (" + i.ID.String() + ")"
}

// PlatformEvent is anything an adapter can turn into a game chat line.
type PlatformEvent interface {
	ChatMessage() (senderName, text string)
}

// OutboundEvent travels from a platform adapter into game chat.
type OutboundEvent struct {
	SenderName string
	Text       string
}

func (e OutboundEvent) ChatMessage() (string, string) {
	return e.SenderName, e.Text
}

// InboundEvent travels from game chat (or a linked bridge) to a platform
// adapter.
type InboundEvent struct {
	Sender Identity
	// SenderHint is the name the game attached to the chat line, if any.
	SenderHint string
	Text       string
}

// DisplayName returns the name adapters should show for the sender.
func (e InboundEvent) DisplayName() string {
	if e.SenderHint != "" {
		return e.SenderHint
	}
	return e.Sender.Name
}

var _ PlatformEvent = OutboundEvent{}
