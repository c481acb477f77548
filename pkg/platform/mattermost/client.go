// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package mattermost relays one Mattermost channel through a bot or user
// token. Posts arrive over the websocket API and game chat is posted with
// the REST API.
package mattermost

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/rs/zerolog"

	"github.com/aiku/gamerelay/pkg/relay"
)

// relayPropKey marks posts created by this relay so they are never read back.
const relayPropKey = "from_gamerelay"

const defaultReconnectDelay = 5 * time.Second

type Config struct {
	ServerURL string
	Token     string
	ChannelID string
	// BotPrefix is a username prefix for echo prevention. Any Mattermost
	// username starting with this prefix is treated as a bridge-managed
	// bot and its posts are not relayed into the game.
	BotPrefix string
	// FormatSender renders the name game players see. Nil keeps the
	// Mattermost name unchanged.
	FormatSender func(name string) string
}

// Adapter is a single authenticated Mattermost connection bound to a bridge.
type Adapter struct {
	cfg    Config
	plugin *relay.PluginSide

	client         *model.Client4
	wsMu           sync.Mutex
	wsClient       *model.WebSocketClient
	userID         string
	reconnectDelay time.Duration

	stopOnce sync.Once
	stopChan chan struct{}
	log      zerolog.Logger
}

func New(cfg Config, plugin *relay.PluginSide, log zerolog.Logger) (*Adapter, error) {
	if cfg.ServerURL == "" || cfg.ChannelID == "" {
		return nil, fmt.Errorf("mattermost: server_url and channel_id are required")
	}
	client := model.NewAPIv4Client(cfg.ServerURL)
	client.SetToken(cfg.Token)
	return &Adapter{
		cfg:            cfg,
		plugin:         plugin,
		client:         client,
		reconnectDelay: defaultReconnectDelay,
		stopChan:       make(chan struct{}),
		log:            log.With().Str("component", "mm_client").Logger(),
	}, nil
}

// Connect verifies the token and opens the websocket.
func (a *Adapter) Connect(ctx context.Context) error {
	a.log.Info().Str("server_url", a.cfg.ServerURL).Msg("Connecting to Mattermost")

	me, _, err := a.client.GetMe(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to verify Mattermost session: %w", err)
	}
	a.userID = me.Id
	a.log.Info().Str("user_id", me.Id).Str("username", me.Username).Msg("Authenticated")

	return a.connectWebSocket()
}

func (a *Adapter) connectWebSocket() error {
	wsURL := httpToWS(a.cfg.ServerURL)
	ws, err := model.NewWebSocketClient4(wsURL, a.client.AuthToken)
	if err != nil {
		return fmt.Errorf("failed to create websocket client: %w", err)
	}
	ws.Listen()

	a.wsMu.Lock()
	a.wsClient = ws
	a.wsMu.Unlock()
	go a.listenWebSocket(ws)

	a.log.Info().Str("ws_url", wsURL).Msg("WebSocket connected")
	return nil
}

// httpToWS converts an HTTP(S) URL to a WS(S) URL.
func httpToWS(url string) string {
	if strings.HasPrefix(url, "https://") {
		return "wss://" + strings.TrimPrefix(url, "https://")
	}
	if strings.HasPrefix(url, "http://") {
		return "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url
}

func (a *Adapter) listenWebSocket(ws *model.WebSocketClient) {
	for {
		select {
		case <-a.stopChan:
			return
		case evt, ok := <-ws.EventChannel:
			if !ok {
				a.log.Warn().Msg("WebSocket event channel closed, reconnecting")
				a.handleWebSocketDisconnect()
				return
			}
			if evt == nil {
				continue
			}
			a.handleEvent(evt)
		}
	}
}

// handleWebSocketDisconnect retries the websocket until it reconnects or
// the adapter stops.
func (a *Adapter) handleWebSocketDisconnect() {
	for {
		select {
		case <-a.stopChan:
			return
		case <-time.After(a.reconnectDelay):
		}
		if err := a.connectWebSocket(); err != nil {
			a.log.Error().Err(err).Msg("Failed to reconnect WebSocket")
			continue
		}
		return
	}
}

// Disconnect closes the WebSocket connection and stops the event loop.
func (a *Adapter) Disconnect() {
	a.stopOnce.Do(func() {
		close(a.stopChan)
	})
	a.wsMu.Lock()
	defer a.wsMu.Unlock()
	if a.wsClient != nil {
		a.wsClient.Close()
		a.wsClient = nil
	}
}

// Run connects and relays game chat until ctx is done or the bridge closes.
func (a *Adapter) Run(ctx context.Context) error {
	if err := a.Connect(ctx); err != nil {
		return err
	}
	defer a.Disconnect()
	return a.relayToMattermost(ctx)
}

func (a *Adapter) relayToMattermost(ctx context.Context) error {
	for {
		evt, err := a.plugin.Recv(ctx)
		if errors.Is(err, relay.ErrClosed) {
			a.log.Error().Err(err).Msg("Bridge closed, stopping Mattermost relay")
			return err
		} else if err != nil {
			return nil
		}
		if err := a.sendToMattermost(ctx, evt); err != nil {
			a.log.Warn().Err(err).Str("sender", evt.DisplayName()).Msg("Failed to relay message to Mattermost")
		}
	}
}

func (a *Adapter) sendToMattermost(ctx context.Context, evt relay.InboundEvent) error {
	post := &model.Post{
		ChannelId: a.cfg.ChannelID,
		Message:   "**" + evt.DisplayName() + "**: " + evt.Text,
	}
	post.AddProp(relayPropKey, true)
	if _, _, err := a.client.CreatePost(ctx, post); err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}
