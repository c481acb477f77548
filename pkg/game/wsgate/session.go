// Copyright 2024-2026 Aiku AI

package wsgate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aiku/gamerelay/pkg/relay"
)

// Session is one connected game agent.
type Session struct {
	profile relay.Identity
	conn    *websocket.Conn

	writeMu      sync.Mutex
	writeTimeout time.Duration
}

var _ relay.Session = (*Session)(nil)

func (s *Session) Profile() relay.Identity {
	return s.profile
}

// SendChat asks the agent to say text in game chat.
func (s *Session) SendChat(ctx context.Context, text string) error {
	deadline := time.Now().Add(s.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := s.conn.WriteJSON(Frame{Type: FrameChat, Text: text}); err != nil {
		return fmt.Errorf("failed to send chat to %s: %w", s.profile.Name, err)
	}
	return nil
}
