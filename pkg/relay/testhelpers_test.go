// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// fakeSession records every chat line sent through it.
type fakeSession struct {
	profile Identity

	mu   sync.Mutex
	sent []string
	fail bool
}

func newFakeSession(name string) *fakeSession {
	return &fakeSession{profile: Identity{ID: uuid.New(), Name: name}}
}

func (s *fakeSession) Profile() Identity {
	return s.profile
}

func (s *fakeSession) SendChat(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("fake send failure")
	}
	s.sent = append(s.sent, text)
	return nil
}

func (s *fakeSession) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]string, len(s.sent))
	copy(cp, s.sent)
	return cp
}

// fakeGame is a Game backed by a roster and a fixed session list.
type fakeGame struct {
	*Roster
	sessions []Session
}

func newFakeGame(sessions ...*fakeSession) *fakeGame {
	g := &fakeGame{Roster: NewRoster()}
	for _, s := range sessions {
		g.sessions = append(g.sessions, s)
	}
	return g
}

func (g *fakeGame) Sessions() []Session {
	return g.sessions
}

// drainInbound pops every inbound event buffered for the adapter.
func drainInbound(p *PluginSide) []InboundEvent {
	var out []InboundEvent
	for {
		evt, ok := p.TryRecv()
		if !ok {
			return out
		}
		out = append(out, evt)
	}
}
