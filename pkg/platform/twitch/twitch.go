// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package twitch relays one Twitch channel over IRC.
package twitch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gempir/go-twitch-irc/v4"
	"github.com/rs/zerolog"

	"github.com/aiku/gamerelay/pkg/chatfmt"
	"github.com/aiku/gamerelay/pkg/relay"
)

const (
	initialRetryDelay = time.Second
	maxRetryDelay     = 5 * time.Minute
)

type Config struct {
	Username string
	// OAuth is the chat token, with or without the "oauth:" prefix.
	OAuth   string
	Channel string
	// FormatSender renders the name game players see. Nil keeps the
	// Twitch display name unchanged.
	FormatSender func(name string) string
}

// ircClient is the subset of *twitch.Client the adapter drives.
type ircClient interface {
	OnConnect(func())
	OnPrivateMessage(func(twitch.PrivateMessage))
	Join(channels ...string)
	Say(channel, text string)
	Connect() error
	Disconnect() error
}

type Adapter struct {
	cfg    Config
	plugin *relay.PluginSide
	irc    ircClient
	log    zerolog.Logger
}

func New(cfg Config, plugin *relay.PluginSide, log zerolog.Logger) (*Adapter, error) {
	if cfg.Username == "" || cfg.OAuth == "" || cfg.Channel == "" {
		return nil, fmt.Errorf("twitch: username, oauth and channel are required")
	}
	cfg.Channel = strings.ToLower(strings.TrimPrefix(cfg.Channel, "#"))
	oauth := cfg.OAuth
	if !strings.HasPrefix(oauth, "oauth:") {
		oauth = "oauth:" + oauth
	}
	a := &Adapter{
		cfg:    cfg,
		plugin: plugin,
		irc:    twitch.NewClient(cfg.Username, oauth),
		log:    log.With().Str("component", "twitch").Logger(),
	}
	a.setupHandlers()
	return a, nil
}

func (a *Adapter) setupHandlers() {
	a.irc.OnConnect(func() {
		a.log.Info().Str("channel", a.cfg.Channel).Msg("Connected to Twitch IRC")
	})
	a.irc.OnPrivateMessage(a.handleMessage)
	a.irc.Join(a.cfg.Channel)
}

// Run connects and relays game chat until ctx is done or the bridge closes.
// The IRC connection is retried with exponential backoff.
func (a *Adapter) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.connectLoop(ctx)
	defer func() {
		if err := a.irc.Disconnect(); err != nil {
			a.log.Debug().Err(err).Msg("Twitch disconnect")
		}
	}()
	return a.relayToTwitch(ctx)
}

func (a *Adapter) connectLoop(ctx context.Context) {
	delay := initialRetryDelay
	for {
		err := a.irc.Connect()
		if ctx.Err() != nil || errors.Is(err, twitch.ErrClientDisconnected) {
			return
		}
		a.log.Warn().Err(err).Dur("retry_in", delay).Msg("Twitch IRC connection lost")
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

func (a *Adapter) relayToTwitch(ctx context.Context) error {
	for {
		evt, err := a.plugin.Recv(ctx)
		if errors.Is(err, relay.ErrClosed) {
			a.log.Error().Err(err).Msg("Bridge closed, stopping Twitch relay")
			return err
		} else if err != nil {
			return nil
		}
		// Twitch drops lines over 500 characters.
		for _, line := range relay.Chunk(evt.DisplayName(), evt.Text) {
			a.irc.Say(a.cfg.Channel, line)
		}
	}
}

func (a *Adapter) handleMessage(msg twitch.PrivateMessage) {
	if !strings.EqualFold(strings.TrimPrefix(msg.Channel, "#"), a.cfg.Channel) {
		return
	}
	if strings.EqualFold(msg.User.Name, a.cfg.Username) {
		return
	}

	text := chatfmt.Flatten(msg.Message)
	if text == "" {
		return
	}
	if msg.Action {
		text = "* " + text
	}

	name := msg.User.DisplayName
	if name == "" {
		name = msg.User.Name
	}
	if a.cfg.FormatSender != nil {
		name = a.cfg.FormatSender(name)
	}
	if err := a.plugin.Send(relay.OutboundEvent{SenderName: name, Text: text}); err != nil {
		a.log.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to queue Twitch message for game chat")
	}
}
