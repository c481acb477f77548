// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package app wires the configured bridges, the game gateway and the
// health endpoints into one running relay.
package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/gamerelay/pkg/game/wsgate"
	"github.com/aiku/gamerelay/pkg/health"
	"github.com/aiku/gamerelay/pkg/platform/discord"
	"github.com/aiku/gamerelay/pkg/platform/matrix"
	"github.com/aiku/gamerelay/pkg/platform/mattermost"
	"github.com/aiku/gamerelay/pkg/platform/twitch"
	"github.com/aiku/gamerelay/pkg/relay"
)

// adapter is a platform connection driving one bridge's plugin side.
type adapter interface {
	Run(ctx context.Context) error
}

// App owns every running component.
type App struct {
	cfg *Config
	log zerolog.Logger

	tracker *health.Tracker
	gateway *wsgate.Gateway
	poller  *relay.Poller

	bridges  map[string]*relay.Bridge
	adapters map[string]adapter
}

// New builds a bridge and adapter for every enabled platform and applies
// the configured links. Nothing connects until Run.
func New(cfg *Config, log zerolog.Logger) (*App, error) {
	a := &App{
		cfg:      cfg,
		log:      log,
		tracker:  health.NewTracker(cfg.Health.Timeout),
		bridges:  make(map[string]*relay.Bridge),
		adapters: make(map[string]adapter),
	}
	a.gateway = wsgate.New(wsgate.Config{
		Token:            cfg.Gateway.Token,
		HandshakeTimeout: cfg.Gateway.HandshakeTimeout,
		PingInterval:     cfg.Gateway.PingInterval,
	}, a.tracker, log)
	a.poller = relay.NewPoller(a.gateway, cfg.Relay.PollInterval, log.With().Str("component", "poller").Logger())

	sections := cfg.bridges()
	for _, name := range slices.Sorted(maps.Keys(sections)) {
		bc := sections[name]
		if !bc.Enabled {
			continue
		}
		opts, err := bc.RelayOptions()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		opts = append(opts, relay.WithLogger(log))
		bridge := relay.New(name, opts...)

		ad, err := a.newAdapter(name, bridge.Plugin)
		if err != nil {
			return nil, err
		}
		a.bridges[name] = bridge
		a.adapters[name] = ad
		a.gateway.Subscribe(bridge.Client)
		a.poller.Add(bridge.Client)
	}

	for i, l := range cfg.Links {
		from, to := a.bridges[l.From], a.bridges[l.To]
		if from == nil || to == nil {
			return nil, fmt.Errorf("links[%d]: unknown bridge in %s -> %s", i, l.From, l.To)
		}
		if l.OneWay {
			from.Client.LinkTo(to.Client)
		} else {
			relay.Link(from.Client, to.Client)
		}
	}

	if len(a.bridges) == 0 {
		log.Warn().Msg("No platform is enabled, game chat will not be relayed anywhere")
	}
	return a, nil
}

func (a *App) newAdapter(name string, plugin *relay.PluginSide) (adapter, error) {
	log := a.log.With().Str("bridge", name).Logger()
	switch name {
	case "discord":
		c := a.cfg.Discord
		return discord.New(discord.Config{
			Token:        c.Token,
			ChannelID:    c.ChannelID,
			WebhookID:    c.WebhookID,
			WebhookToken: c.WebhookToken,
			FormatSender: a.cfg.Discord.senderFormatter(name),
		}, plugin, log)
	case "matrix":
		c := a.cfg.Matrix
		return matrix.New(matrix.Config{
			HomeserverURL: c.HomeserverURL,
			UserID:        id.UserID(c.UserID),
			AccessToken:   c.AccessToken,
			RoomID:        id.RoomID(c.RoomID),
			DisplayName:   c.DisplayName,
			BotPrefix:     c.BotPrefix,
			FormatSender:  a.cfg.Matrix.senderFormatter(name),
		}, plugin, log)
	case "mattermost":
		c := a.cfg.Mattermost
		return mattermost.New(mattermost.Config{
			ServerURL:    c.ServerURL,
			Token:        c.Token,
			ChannelID:    c.ChannelID,
			BotPrefix:    c.BotPrefix,
			FormatSender: a.cfg.Mattermost.senderFormatter(name),
		}, plugin, log)
	case "twitch":
		c := a.cfg.Twitch
		return twitch.New(twitch.Config{
			Username:     c.Username,
			OAuth:        c.OAuth,
			Channel:      c.Channel,
			FormatSender: a.cfg.Twitch.senderFormatter(name),
		}, plugin, log)
	default:
		return nil, fmt.Errorf("unknown platform %q", name)
	}
}

// Bridge returns the bridge for an enabled platform, or nil.
func (a *App) Bridge(name string) *relay.Bridge {
	return a.bridges[name]
}

// Run serves the gateway and health endpoints, polls every bridge and runs
// every adapter until ctx is done or a listener fails. An adapter that
// stops tears down its own bridge without stopping the others.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.gateway.ListenAndServe(ctx, a.cfg.Gateway.Listen, a.cfg.Gateway.Path)
	})
	if a.cfg.Health.Enabled {
		srv := health.NewServer(a.cfg.Health.Listen, a.tracker, a.log.With().Str("component", "health").Logger())
		g.Go(func() error {
			return srv.ListenAndServe(ctx)
		})
	}
	g.Go(func() error {
		a.poller.Run(ctx)
		return nil
	})

	for name, ad := range a.adapters {
		bridge := a.bridges[name]
		g.Go(func() error {
			defer bridge.Close()
			err := ad.Run(ctx)
			switch {
			case ctx.Err() != nil:
			case errors.Is(err, relay.ErrClosed):
				a.log.Warn().Str("bridge", name).Msg("Bridge closed")
			case err != nil:
				a.log.Error().Err(err).Str("bridge", name).Msg("Platform adapter stopped")
			}
			return nil
		})
	}

	err := g.Wait()
	for _, b := range a.bridges {
		b.Close()
	}
	return err
}
