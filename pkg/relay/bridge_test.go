// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"context"
	"errors"
	"testing"
)

func TestBridge_PluginToClient(t *testing.T) {
	t.Parallel()
	b := New("discord")
	if err := b.Plugin.Send(OutboundEvent{SenderName: "alice", Text: "hello"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !b.Client.HasPending() {
		t.Fatal("HasPending should be true after Send")
	}

	s := newFakeSession("Steve")
	n, err := b.Client.ConsumeStep(context.Background(), newFakeGame(s))
	if err != nil || n != 1 {
		t.Fatalf("ConsumeStep: got (%d, %v), want (1, nil)", n, err)
	}
	got := s.Sent()
	if len(got) != 1 || got[0] != "alice: hello" {
		t.Errorf("sent: got %q, want [%q]", got, "alice: hello")
	}
}

func TestLink_Symmetric(t *testing.T) {
	t.Parallel()
	a := New("discord")
	b := New("matrix")
	Link(a.Client, b.Client)

	if got := a.Client.Links(); len(got) != 1 || got[0] != "matrix" {
		t.Errorf("a links: got %q, want [matrix]", got)
	}
	if got := b.Client.Links(); len(got) != 1 || got[0] != "discord" {
		t.Errorf("b links: got %q, want [discord]", got)
	}
}

func TestLinkTo_OneWay(t *testing.T) {
	t.Parallel()
	a := New("discord")
	b := New("matrix")
	a.Client.LinkTo(b.Client)

	if len(b.Client.Links()) != 0 {
		t.Errorf("LinkTo should not register the reverse direction")
	}
}

// TestPluginEvent verifies that any PlatformEvent implementation can be sent.
func TestPluginEvent(t *testing.T) {
	t.Parallel()
	b := New("twitch")
	if err := b.Plugin.Send(customEvent{"viewer", "pog"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	evt, ok := b.Client.outbound.TryRecv()
	if !ok {
		t.Fatal("expected a queued outbound event")
	}
	if evt.SenderName != "viewer" || evt.Text != "pog" {
		t.Errorf("event: got %+v", evt)
	}
}

type customEvent struct{ user, msg string }

func (c customEvent) ChatMessage() (string, string) { return c.user, c.msg }

func TestBridge_Close(t *testing.T) {
	t.Parallel()
	b := New("matrix")
	b.Close()

	if err := b.Plugin.Send(OutboundEvent{SenderName: "a", Text: "b"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Plugin.Send after close: got %v, want ErrClosed", err)
	}
	if _, err := b.Plugin.Recv(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Plugin.Recv after close: got %v, want ErrClosed", err)
	}
	if _, err := b.Client.ConsumeStep(context.Background(), newFakeGame()); !errors.Is(err, ErrClosed) {
		t.Errorf("ConsumeStep after close: got %v, want ErrClosed", err)
	}
}

func TestInboundEvent_DisplayName(t *testing.T) {
	t.Parallel()
	evt := InboundEvent{Sender: Identity{Name: "Steve"}}
	if got := evt.DisplayName(); got != "Steve" {
		t.Errorf("DisplayName: got %q, want %q", got, "Steve")
	}
	evt.SenderHint = "[VIP] Steve"
	if got := evt.DisplayName(); got != "[VIP] Steve" {
		t.Errorf("DisplayName with hint: got %q, want %q", got, "[VIP] Steve")
	}
}
