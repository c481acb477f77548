// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrProducerStopped is returned by HandleChat after the inbound queue was
// found closed.
var ErrProducerStopped = errors.New("relay: producer path stopped")

// ChatNotification is one chat line observed in game.
type ChatNotification struct {
	// SenderID is uuid.Nil for server messages.
	SenderID   uuid.UUID
	SenderHint string
	Text       string
	// Receiver is the local session that observed the line.
	Receiver Identity
}

// Resolve maps a sender id to an identity. The boolean is true only when the
// id was found in dir; unknown ids resolve to UnknownName and a missing id
// to ServerName.
func Resolve(dir Directory, id uuid.UUID) (Identity, bool) {
	if id == uuid.Nil {
		return Identity{Name: ServerName}, false
	}
	if dir != nil {
		if known, ok := dir.Lookup(id); ok {
			return known, true
		}
	}
	return Identity{ID: id, Name: UnknownName}, false
}

// HandleChat turns a game chat notification into an inbound event for the
// adapter. Lines from ignored players, lines observed by sessions outside
// the bridge's mode, and repeats caught by deduplication are dropped
// without error.
//
// If the inbound queue has been closed the producer path stops: the failure
// is logged and returned once, and every later call returns
// ErrProducerStopped.
func (c *ClientSide) HandleChat(dir Directory, n ChatNotification) error {
	if c.producerStopped.Load() {
		return ErrProducerStopped
	}
	if !c.mode.Accepts(n.Receiver.Name) {
		return nil
	}

	sender, known := Resolve(dir, n.SenderID)
	if known && c.ignore.Contains(sender.Name) {
		c.log.Trace().Str("sender", sender.Name).Msg("Dropping chat from ignored player")
		return nil
	}
	if c.dedup != nil && c.dedup.Seen(dedupKey(sender, n.Text), n.Receiver.Name) {
		c.log.Trace().
			Str("sender", sender.Name).
			Str("receiver", n.Receiver.Name).
			Msg("Dropping duplicate chat line")
		return nil
	}

	err := c.inbound.Send(InboundEvent{
		Sender:     sender,
		SenderHint: n.SenderHint,
		Text:       n.Text,
	})
	if err != nil {
		c.producerStopped.Store(true)
		c.log.Error().Err(err).Msg("Inbound queue closed, stopping producer path")
		return fmt.Errorf("bridge %s: %w", c.name, err)
	}
	return nil
}
