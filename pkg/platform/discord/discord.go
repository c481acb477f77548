// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package discord relays one Discord channel. Channel messages are read by a
// bot account; game chat is posted through a webhook so each line shows the
// game player's name.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/aiku/gamerelay/pkg/chatfmt"
	"github.com/aiku/gamerelay/pkg/relay"
)

// Discord rejects webhook usernames longer than this.
const maxUsernameLength = 80

type Config struct {
	Token        string
	ChannelID    string
	WebhookID    string
	WebhookToken string
	// FormatSender renders the name game players see. Nil keeps the
	// Discord name unchanged.
	FormatSender func(name string) string
}

// webhookExecutor lets tests replace the Discord REST API.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Adapter struct {
	cfg     Config
	plugin  *relay.PluginSide
	session *discordgo.Session
	webhook webhookExecutor
	log     zerolog.Logger
}

// New prepares a Discord adapter for the bridge's plugin side. It does not
// connect until Run.
func New(cfg Config, plugin *relay.PluginSide, log zerolog.Logger) (*Adapter, error) {
	if cfg.ChannelID == "" || cfg.WebhookID == "" || cfg.WebhookToken == "" {
		return nil, fmt.Errorf("discord: channel_id, webhook_id and webhook_token are required")
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent

	a := &Adapter{
		cfg:     cfg,
		plugin:  plugin,
		session: session,
		webhook: session,
		log:     log.With().Str("component", "discord").Logger(),
	}
	session.AddHandler(a.onMessageCreate)
	return a, nil
}

// Run opens the gateway connection and relays game chat to the webhook
// until ctx is done or the bridge closes.
func (a *Adapter) Run(ctx context.Context) error {
	if err := a.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	defer a.session.Close()
	a.log.Info().Str("channel_id", a.cfg.ChannelID).Msg("Connected to Discord")

	return a.relayToDiscord(ctx)
}

func (a *Adapter) relayToDiscord(ctx context.Context) error {
	for {
		evt, err := a.plugin.Recv(ctx)
		if errors.Is(err, relay.ErrClosed) {
			a.log.Error().Err(err).Msg("Bridge closed, stopping Discord relay")
			return err
		} else if err != nil {
			return nil
		}
		if err := a.sendToDiscord(evt); err != nil {
			a.log.Warn().Err(err).Str("sender", evt.DisplayName()).Msg("Failed to relay message to Discord")
		}
	}
}

func (a *Adapter) sendToDiscord(evt relay.InboundEvent) error {
	_, err := a.webhook.WebhookExecute(a.cfg.WebhookID, a.cfg.WebhookToken, false, &discordgo.WebhookParams{
		Content:  chatfmt.EscapeDiscord(evt.Text),
		Username: webhookUsername(evt.DisplayName()),
		// Game text must never ping anyone.
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	return err
}

func webhookUsername(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return relay.ServerName
	}
	if len(name) > maxUsernameLength {
		cut := maxUsernameLength
		for cut > 0 && !isRuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	return name
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func (a *Adapter) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	a.handleMessage(m.Message)
}

// handleMessage forwards a channel message to game chat. Bot and webhook
// authors are skipped, which also drops the adapter's own webhook posts.
func (a *Adapter) handleMessage(m *discordgo.Message) {
	if m == nil || m.Author == nil {
		return
	}
	if m.ChannelID != a.cfg.ChannelID {
		return
	}
	if m.Author.Bot || m.WebhookID != "" {
		return
	}

	text := m.ContentWithMentionsReplaced()
	for _, att := range m.Attachments {
		text = strings.TrimSpace(text + " " + att.URL)
	}
	text = chatfmt.Flatten(text)
	if text == "" {
		return
	}

	name := senderName(m)
	if a.cfg.FormatSender != nil {
		name = a.cfg.FormatSender(name)
	}
	if err := a.plugin.Send(relay.OutboundEvent{SenderName: name, Text: text}); err != nil {
		a.log.Error().Err(err).Str("message_id", m.ID).Msg("Failed to queue Discord message for game chat")
	}
}

func senderName(m *discordgo.Message) string {
	switch {
	case m.Member != nil && m.Member.Nick != "":
		return m.Member.Nick
	case m.Author.GlobalName != "":
		return m.Author.GlobalName
	default:
		return m.Author.Username
	}
}
