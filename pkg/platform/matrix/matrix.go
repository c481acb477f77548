// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package matrix relays one Matrix room through a bot account.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/gamerelay/pkg/chatfmt"
	"github.com/aiku/gamerelay/pkg/relay"
)

type Config struct {
	HomeserverURL string
	UserID        id.UserID
	AccessToken   string
	RoomID        id.RoomID
	// DisplayName, when set, is applied to the bot account on start.
	DisplayName string
	// BotPrefix marks localparts of other bridge bots. Their messages are
	// not relayed into the game.
	BotPrefix string
	// FormatSender renders the name game players see. Nil keeps the Matrix
	// display name unchanged.
	FormatSender func(name string) string
}

type Adapter struct {
	cfg     Config
	plugin  *relay.PluginSide
	client  *mautrix.Client
	started time.Time
	log     zerolog.Logger

	namesMu sync.RWMutex
	names   map[id.UserID]string
}

func New(cfg Config, plugin *relay.PluginSide, log zerolog.Logger) (*Adapter, error) {
	if cfg.RoomID == "" {
		return nil, fmt.Errorf("matrix: room_id is required")
	}
	client, err := mautrix.NewClient(cfg.HomeserverURL, cfg.UserID, cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create matrix client: %w", err)
	}
	a := &Adapter{
		cfg:     cfg,
		plugin:  plugin,
		client:  client,
		started: time.Now(),
		log:     log.With().Str("component", "matrix").Logger(),
		names:   make(map[id.UserID]string),
	}
	client.Log = a.log

	syncer := mautrix.NewDefaultSyncer()
	syncer.OnEventType(event.EventMessage, a.handleMessage)
	syncer.OnEventType(event.StateMember, a.handleMember)
	client.Syncer = syncer
	return a, nil
}

// Run joins the room, starts syncing and relays game chat until ctx is done
// or the bridge closes.
func (a *Adapter) Run(ctx context.Context) error {
	if _, err := a.client.JoinRoomByID(ctx, a.cfg.RoomID); err != nil {
		return fmt.Errorf("failed to join %s: %w", a.cfg.RoomID, err)
	}
	if a.cfg.DisplayName != "" {
		if err := a.client.SetDisplayName(ctx, a.cfg.DisplayName); err != nil {
			a.log.Warn().Err(err).Msg("Failed to set bot display name")
		}
	}
	a.log.Info().Str("room_id", string(a.cfg.RoomID)).Msg("Joined Matrix room")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	syncErr := make(chan error, 1)
	go func() {
		syncErr <- a.client.SyncWithContext(ctx)
	}()

	relayErr := a.relayToMatrix(ctx)
	cancel()
	if err := <-syncErr; err != nil && !errors.Is(err, context.Canceled) {
		a.log.Warn().Err(err).Msg("Matrix sync stopped")
	}
	return relayErr
}

func (a *Adapter) relayToMatrix(ctx context.Context) error {
	for {
		evt, err := a.plugin.Recv(ctx)
		if errors.Is(err, relay.ErrClosed) {
			a.log.Error().Err(err).Msg("Bridge closed, stopping Matrix relay")
			return err
		} else if err != nil {
			return nil
		}
		if err := a.sendToMatrix(ctx, evt); err != nil {
			a.log.Warn().Err(err).Str("sender", evt.DisplayName()).Msg("Failed to relay message to Matrix")
		}
	}
}

func (a *Adapter) sendToMatrix(ctx context.Context, evt relay.InboundEvent) error {
	body, formatted := chatfmt.MatrixHTML(evt.DisplayName(), evt.Text)
	_, err := a.client.SendMessageEvent(ctx, a.cfg.RoomID, event.EventMessage, &event.MessageEventContent{
		MsgType:       event.MsgText,
		Body:          body,
		Format:        event.FormatHTML,
		FormattedBody: formatted,
	})
	return err
}

// handleMessage forwards room messages to game chat. Own messages, other
// bridge bots, history from before startup, edits and non-text messages
// are skipped.
func (a *Adapter) handleMessage(ctx context.Context, evt *event.Event) {
	if evt.RoomID != a.cfg.RoomID || evt.Sender == a.client.UserID {
		return
	}
	if a.isBridgeUser(evt.Sender) {
		a.log.Debug().Str("sender", string(evt.Sender)).Msg("Skipping bridge bot message (echo prevention)")
		return
	}
	if time.UnixMilli(evt.Timestamp).Before(a.started) {
		return
	}
	content := evt.Content.AsMessage()
	if content == nil || (content.RelatesTo != nil && content.RelatesTo.GetReplaceID() != "") {
		return
	}

	var text string
	switch content.MsgType {
	case event.MsgText, event.MsgNotice:
		text = chatfmt.MatrixToPlain(content)
	case event.MsgEmote:
		text = "* " + chatfmt.MatrixToPlain(content)
	default:
		return
	}
	if text == "" {
		return
	}

	name := a.displayName(ctx, evt.Sender)
	if a.cfg.FormatSender != nil {
		name = a.cfg.FormatSender(name)
	}
	if err := a.plugin.Send(relay.OutboundEvent{SenderName: name, Text: text}); err != nil {
		a.log.Error().Err(err).Str("event_id", string(evt.ID)).Msg("Failed to queue Matrix message for game chat")
	}
}

// handleMember keeps the display name cache in step with profile changes.
func (a *Adapter) handleMember(_ context.Context, evt *event.Event) {
	if evt.RoomID != a.cfg.RoomID {
		return
	}
	member := evt.Content.AsMember()
	if member == nil {
		return
	}
	userID := id.UserID(evt.GetStateKey())
	a.namesMu.Lock()
	defer a.namesMu.Unlock()
	if member.Membership == event.MembershipJoin && member.Displayname != "" {
		a.names[userID] = member.Displayname
	} else {
		delete(a.names, userID)
	}
}

func (a *Adapter) isBridgeUser(userID id.UserID) bool {
	if a.cfg.BotPrefix == "" {
		return false
	}
	localpart, _, err := userID.Parse()
	return err == nil && strings.HasPrefix(localpart, a.cfg.BotPrefix)
}

// displayName returns the sender's profile name, falling back to the
// localpart. Names are cached for the adapter's lifetime.
func (a *Adapter) displayName(ctx context.Context, userID id.UserID) string {
	a.namesMu.RLock()
	name, ok := a.names[userID]
	a.namesMu.RUnlock()
	if ok {
		return name
	}

	resp, err := a.client.GetDisplayName(ctx, userID)
	if err == nil && resp.DisplayName != "" {
		name = resp.DisplayName
	} else {
		if err != nil {
			a.log.Debug().Err(err).Str("user_id", string(userID)).Msg("Failed to fetch display name")
		}
		localpart, _, parseErr := userID.Parse()
		if parseErr != nil || localpart == "" {
			localpart = string(userID)
		}
		name = localpart
	}

	a.namesMu.Lock()
	a.names[userID] = name
	a.namesMu.Unlock()
	return name
}
