// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Session is a local game account able to speak in game chat.
type Session interface {
	Profile() Identity
	SendChat(ctx context.Context, text string) error
}

// Directory resolves account ids seen in chat to known identities.
type Directory interface {
	Lookup(id uuid.UUID) (Identity, bool)
}

// Game is the host side a bridge delivers into.
type Game interface {
	Directory
	Sessions() []Session
}

// Roster is a concurrency-safe Directory fed from player list updates.
type Roster struct {
	mu      sync.RWMutex
	players map[uuid.UUID]Identity
}

func NewRoster() *Roster {
	return &Roster{players: make(map[uuid.UUID]Identity)}
}

// Add records or renames a player. Identities without an id are ignored.
func (r *Roster) Add(players ...Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range players {
		if p.HasID() {
			r.players[p.ID] = p
		}
	}
}

func (r *Roster) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.players, id)
}

func (r *Roster) Lookup(id uuid.UUID) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[id]
	return p, ok
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

var _ Directory = (*Roster)(nil)
