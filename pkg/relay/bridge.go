// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Bridge is the pair of queue halves connecting one platform adapter to the
// game host.
type Bridge struct {
	Client *ClientSide
	Plugin *PluginSide
}

// Option configures a Bridge.
type Option func(*options)

type options struct {
	ignore      IgnoreList
	mode        Mode
	dedupWindow time.Duration
	log         zerolog.Logger
}

// WithIgnoreList sets the names whose game chat is not relayed.
func WithIgnoreList(list IgnoreList) Option {
	return func(o *options) { o.ignore = list }
}

// WithMode sets the session binding mode. The default is ModeAll.
func WithMode(mode Mode) Option {
	return func(o *options) { o.mode = mode }
}

// WithDedup collapses identical chat lines seen within window. A zero
// window disables deduplication.
func WithDedup(window time.Duration) Option {
	return func(o *options) { o.dedupWindow = window }
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// New creates a bridge named after the platform it serves.
func New(name string, opts ...Option) *Bridge {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	outbound := NewQueue[OutboundEvent]()
	inbound := NewQueue[InboundEvent]()
	log := o.log.With().Str("bridge", name).Logger()

	client := &ClientSide{
		name:     name,
		outbound: outbound,
		inbound:  inbound,
		ignore:   o.ignore,
		mode:     o.mode,
		log:      log,
	}
	if o.dedupWindow > 0 {
		client.dedup = NewDeduplicator(o.dedupWindow)
	}
	return &Bridge{
		Client: client,
		Plugin: &PluginSide{
			name:     name,
			inbound:  inbound,
			outbound: outbound,
			log:      log,
		},
	}
}

// Close tears down both halves.
func (b *Bridge) Close() {
	b.Client.Close()
}

// link is a send handle into another bridge's inbound queue.
type link struct {
	name string
	tx   *Queue[InboundEvent]
}

// ClientSide is the game host's half of a bridge.
type ClientSide struct {
	name     string
	outbound *Queue[OutboundEvent]
	inbound  *Queue[InboundEvent]
	ignore   IgnoreList
	mode     Mode
	dedup    *Deduplicator

	linkMu sync.RWMutex
	links  []link

	producerStopped atomic.Bool
	log             zerolog.Logger
}

func (c *ClientSide) Name() string {
	return c.name
}

func (c *ClientSide) Mode() Mode {
	return c.mode
}

func (c *ClientSide) IgnoreList() IgnoreList {
	return c.ignore
}

// LinkTo makes every outbound event consumed by c also reach other's
// adapter. It is one-directional; use Link for the usual symmetric setup.
func (c *ClientSide) LinkTo(other *ClientSide) {
	c.linkMu.Lock()
	defer c.linkMu.Unlock()
	c.links = append(c.links, link{name: other.name, tx: other.inbound})
	c.log.Debug().Str("link", other.name).Msg("Linked bridge")
}

// Links returns the names of the linked bridges in link order.
func (c *ClientSide) Links() []string {
	c.linkMu.RLock()
	defer c.linkMu.RUnlock()
	names := make([]string, len(c.links))
	for i, l := range c.links {
		names[i] = l.name
	}
	return names
}

// Close closes both queues of the bridge.
func (c *ClientSide) Close() {
	c.outbound.Close()
	c.inbound.Close()
}

// Link connects a and b in both directions.
func Link(a, b *ClientSide) {
	a.LinkTo(b)
	b.LinkTo(a)
}

// PluginSide is the platform adapter's half of a bridge.
type PluginSide struct {
	name     string
	inbound  *Queue[InboundEvent]
	outbound *Queue[OutboundEvent]
	log      zerolog.Logger
}

func (p *PluginSide) Name() string {
	return p.name
}

// Send queues a platform message for delivery into game chat.
func (p *PluginSide) Send(evt PlatformEvent) error {
	sender, text := evt.ChatMessage()
	return p.outbound.Send(OutboundEvent{SenderName: sender, Text: text})
}

// Recv blocks until the next event from game chat or a linked bridge.
func (p *PluginSide) Recv(ctx context.Context) (InboundEvent, error) {
	return p.inbound.Recv(ctx)
}

// TryRecv returns the next event without blocking.
func (p *PluginSide) TryRecv() (InboundEvent, bool) {
	return p.inbound.TryRecv()
}

// Close closes both queues of the bridge.
func (p *PluginSide) Close() {
	p.inbound.Close()
	p.outbound.Close()
}
