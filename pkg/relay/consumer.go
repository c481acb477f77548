// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPollInterval is one game tick.
const DefaultPollInterval = 50 * time.Millisecond

// HasPending reports whether outbound events are waiting. It is cheap enough
// to call every tick.
func (c *ClientSide) HasPending() bool {
	return !c.outbound.IsEmpty()
}

// ConsumeStep drains every buffered outbound event and delivers each one,
// first to the linked bridges and then into game chat. It returns the
// number of events handled, or ErrClosed once the bridge is closed and
// empty.
func (c *ClientSide) ConsumeStep(ctx context.Context, game Game) (int, error) {
	batch := c.outbound.Drain()
	if len(batch) == 0 {
		if c.outbound.Closed() {
			return 0, ErrClosed
		}
		return 0, nil
	}
	c.deliver(ctx, game, batch)
	return len(batch), nil
}

// Run delivers outbound events as they arrive until ctx is done or the
// bridge is closed.
func (c *ClientSide) Run(ctx context.Context, game Game) error {
	for {
		first, err := c.outbound.Recv(ctx)
		if err != nil {
			return err
		}
		batch := append([]OutboundEvent{first}, c.outbound.Drain()...)
		c.deliver(ctx, game, batch)
	}
}

func (c *ClientSide) deliver(ctx context.Context, game Game, batch []OutboundEvent) {
	all := game.Sessions()
	sessions := c.mode.eligible(all)
	local := c.mode.local(all)
	if len(sessions) == 0 {
		c.log.Debug().
			Str("mode", c.mode.String()).
			Int("events", len(batch)).
			Msg("No eligible game session, events only reach linked bridges")
	}

	for _, evt := range batch {
		c.fanOut(local, evt)

		fragments := Chunk(evt.SenderName, evt.Text)
		for _, s := range sessions {
			for _, fragment := range fragments {
				if err := s.SendChat(ctx, fragment); err != nil {
					c.log.Warn().Err(err).
						Str("session", s.Profile().Name).
						Msg("Failed to send chat fragment")
				}
			}
		}
	}
}

func (c *ClientSide) fanOut(local Identity, evt OutboundEvent) {
	c.linkMu.RLock()
	defer c.linkMu.RUnlock()
	for _, l := range c.links {
		err := l.tx.Send(InboundEvent{
			Sender: local,
			Text:   evt.SenderName + ": " + evt.Text,
		})
		if err != nil {
			c.log.Warn().Err(err).
				Str("link", l.name).
				Msg("Failed to forward event to linked bridge")
		}
	}
}

// Poller drives ConsumeStep for a set of bridges on a fixed interval, the
// way a game client runs systems once per tick.
type Poller struct {
	game     Game
	interval time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	clients []*ClientSide
}

// NewPoller creates a poller. A non-positive interval uses
// DefaultPollInterval.
func NewPoller(game Game, interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{game: game, interval: interval, log: log}
}

func (p *Poller) Add(clients ...*ClientSide) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clients = append(p.clients, clients...)
}

// Len returns the number of bridges still being polled.
func (p *Poller) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// Tick runs one consume step on every bridge with pending events. Closed
// bridges are dropped from the poller.
func (p *Poller) Tick(ctx context.Context) {
	p.mu.Lock()
	clients := make([]*ClientSide, len(p.clients))
	copy(clients, p.clients)
	p.mu.Unlock()

	var closed []*ClientSide
	for _, c := range clients {
		if !c.HasPending() && !c.outbound.Closed() {
			continue
		}
		n, err := c.ConsumeStep(ctx, p.game)
		if errors.Is(err, ErrClosed) {
			closed = append(closed, c)
			continue
		}
		if n > 0 {
			p.log.Trace().Str("bridge", c.name).Int("events", n).Msg("Delivered outbound events")
		}
	}
	if len(closed) > 0 {
		p.remove(closed)
	}
}

func (p *Poller) remove(closed []*ClientSide) {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.clients[:0]
	for _, c := range p.clients {
		drop := false
		for _, d := range closed {
			if c == d {
				drop = true
				break
			}
		}
		if drop {
			p.log.Info().Str("bridge", c.name).Msg("Bridge closed, no longer polling")
			continue
		}
		kept = append(kept, c)
	}
	p.clients = kept
}

// Run ticks until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.log.Info().Dur("interval", p.interval).Msg("Starting relay poller")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("Relay poller stopped")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}
