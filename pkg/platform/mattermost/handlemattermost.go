// Copyright 2024-2026 Aiku AI

package mattermost

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mattermost/mattermost/server/public/model"

	"github.com/aiku/gamerelay/pkg/chatfmt"
	"github.com/aiku/gamerelay/pkg/relay"
)

// handleEvent dispatches a Mattermost WebSocket event to the appropriate handler.
func (a *Adapter) handleEvent(evt *model.WebSocketEvent) {
	switch evt.EventType() {
	case model.WebsocketEventPosted:
		a.handlePosted(evt)
	default:
		a.log.Trace().Str("event_type", string(evt.EventType())).Msg("Unhandled event type")
	}
}

func (a *Adapter) handlePosted(evt *model.WebSocketEvent) {
	post, senderName, err := a.parsePostedEvent(evt)
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to parse posted event")
		return
	}
	if post == nil {
		return
	}

	text := chatfmt.MarkdownToPlain(post.Message)
	if text == "" {
		return
	}
	if a.cfg.FormatSender != nil {
		senderName = a.cfg.FormatSender(senderName)
	}
	if err := a.plugin.Send(relay.OutboundEvent{SenderName: senderName, Text: text}); err != nil {
		a.log.Error().Err(err).Str("post_id", post.Id).Msg("Failed to queue Mattermost post for game chat")
	}
}

// parsePostedEvent extracts and validates a post from a WebSocket event,
// applying all echo prevention layers. Returns (nil, "", nil) to skip
// silently, (nil, "", err) to log an error, or the post and its sender name
// to proceed.
func (a *Adapter) parsePostedEvent(evt *model.WebSocketEvent) (*model.Post, string, error) {
	postJSON, ok := evt.GetData()["post"].(string)
	if !ok {
		return nil, "", fmt.Errorf("posted event missing post data")
	}

	var post model.Post
	if err := json.Unmarshal([]byte(postJSON), &post); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal post: %w", err)
	}

	if post.ChannelId != a.cfg.ChannelID {
		return nil, "", nil
	}

	// Echo prevention: skip own posts.
	if post.UserId == a.userID {
		return nil, "", nil
	}

	// Echo prevention: skip posts this relay created with another token.
	if post.GetProp(relayPropKey) != nil {
		return nil, "", nil
	}

	// Echo prevention: skip non-default post types (system messages).
	if post.Type != "" && post.Type != model.PostTypeDefault {
		return nil, "", nil
	}

	// Echo prevention: skip posts from usernames matching known bridge patterns.
	senderName, _ := evt.GetData()["sender_name"].(string)
	senderName = strings.TrimPrefix(senderName, "@")
	if senderName != "" && isBridgeUsername(senderName, a.cfg.BotPrefix) {
		a.log.Debug().
			Str("post_id", post.Id).
			Str("username", senderName).
			Msg("Skipping bridge username post (echo prevention)")
		return nil, "", nil
	}
	if senderName == "" {
		senderName = relay.UnknownName
	}

	return &post, senderName, nil
}

// isBridgeUsername reports whether a Mattermost username belongs to a
// bridge-managed account.
func isBridgeUsername(username, botPrefix string) bool {
	switch {
	case username == "mattermost-bridge":
		return true
	case strings.HasPrefix(username, "mattermost_"):
		// Ghost users created by a Matrix bridge (username_template: mattermost_{{.}})
		return true
	case botPrefix != "" && strings.HasPrefix(username, botPrefix):
		return true
	default:
		return false
	}
}
