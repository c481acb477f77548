// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package mattermost

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mattermost/mattermost/server/public/model"
	"github.com/rs/zerolog"

	"github.com/aiku/gamerelay/pkg/relay"
)

// endpointCall records which API endpoints were hit during a test.
type endpointCall struct {
	Method string
	Path   string
	Body   string
}

// fakeMM is a test helper that wraps an httptest.Server simulating the
// Mattermost API. It records calls and provides canned responses.
type fakeMM struct {
	Server *httptest.Server

	mu    sync.Mutex
	calls []endpointCall

	// Users maps user ID to model.User for GetMe responses.
	Users map[string]*model.User
	// TokenToUser maps bearer tokens to user IDs for GetMe auth.
	TokenToUser map[string]string
	// FailEndpoints causes specific path prefixes to return 500.
	FailEndpoints map[string]bool
	// Pushed is sent to every websocket client after it connects.
	Pushed []*model.WebSocketEvent

	upgrader websocket.Upgrader
	wsConns  chan *websocket.Conn
}

func newFakeMM() *fakeMM {
	f := &fakeMM{
		Users:         make(map[string]*model.User),
		TokenToUser:   make(map[string]string),
		FailEndpoints: make(map[string]bool),
		wsConns:       make(chan *websocket.Conn, 4),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handler))
	return f
}

func (f *fakeMM) Close() {
	f.Server.Close()
}

func (f *fakeMM) record(method, path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, endpointCall{Method: method, Path: path, Body: body})
}

func (f *fakeMM) Calls() []endpointCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]endpointCall, len(f.calls))
	copy(cp, f.calls)
	return cp
}

func (f *fakeMM) CallsTo(method, path string) []endpointCall {
	var out []endpointCall
	for _, c := range f.Calls() {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeMM) resolveToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	for tok, uid := range f.TokenToUser {
		if auth == "BEARER "+tok || auth == "Bearer "+tok {
			return uid
		}
	}
	return ""
}

func (f *fakeMM) handler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/v4/websocket" {
		f.serveWebSocket(w, r)
		return
	}

	body, _ := io.ReadAll(r.Body)
	f.record(r.Method, r.URL.Path, string(body))

	for prefix := range f.FailEndpoints {
		if strings.Contains(r.URL.Path, prefix) {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "fake error"})
			return
		}
	}

	path := r.URL.Path
	switch {
	// GET /api/v4/users/me
	case r.Method == "GET" && path == "/api/v4/users/me":
		uid := f.resolveToken(r)
		if uid == "" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "unauthorized"})
			return
		}
		if u, ok := f.Users[uid]; ok {
			_ = json.NewEncoder(w).Encode(u)
			return
		}
		w.WriteHeader(http.StatusNotFound)

	// POST /api/v4/posts
	case r.Method == "POST" && path == "/api/v4/posts":
		var post model.Post
		_ = json.Unmarshal(body, &post)
		post.Id = "created-post-id"
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(&post)

	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "not found: " + path})
	}
}

// serveWebSocket accepts the client, then pushes the canned events.
func (f *fakeMM) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.wsConns <- conn
	for _, evt := range f.Pushed {
		data, err := evt.ToJSON()
		if err != nil {
			continue
		}
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
	// Drain client frames (the authentication challenge) until it leaves.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// newWebSocketEvent creates a model.WebSocketEvent for testing handlers.
func newWebSocketEvent(eventType model.WebsocketEventType, channelID string, data map[string]any) *model.WebSocketEvent {
	evt := model.NewWebSocketEvent(eventType, "", channelID, "", nil, "")
	return evt.SetData(data)
}

// newPostedEvent builds a posted event the way the server sends it: the
// post is a JSON string inside the event data.
func newPostedEvent(post *model.Post, senderName string) *model.WebSocketEvent {
	postJSON, _ := json.Marshal(post)
	return newWebSocketEvent(model.WebsocketEventPosted, post.ChannelId, map[string]any{
		"post":        string(postJSON),
		"sender_name": senderName,
	})
}

// newTestAdapter creates an Adapter pointed at serverURL, with the bot user
// already resolved.
func newTestAdapter(t *testing.T, serverURL string) (*Adapter, *relay.Bridge) {
	t.Helper()
	bridge := relay.New("mattermost")
	a, err := New(Config{
		ServerURL: serverURL,
		Token:     "test-token",
		ChannelID: "town-square",
		BotPrefix: "bridge_",
	}, bridge.Plugin, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.userID = "my-user-id"
	return a, bridge
}

// queuedTexts consumes the bridge and returns what a linked bridge would
// see, "name: text" per event.
func queuedTexts(t *testing.T, bridge *relay.Bridge) []string {
	t.Helper()
	peer := relay.New("peer")
	bridge.Client.LinkTo(peer.Client)
	if _, err := bridge.Client.ConsumeStep(context.Background(), emptyGame{}); err != nil {
		t.Fatalf("ConsumeStep: %v", err)
	}
	var out []string
	for {
		evt, ok := peer.Plugin.TryRecv()
		if !ok {
			return out
		}
		out = append(out, evt.Text)
	}
}

type emptyGame struct{}

func (emptyGame) Sessions() []relay.Session { return nil }

func (emptyGame) Lookup(uuid.UUID) (relay.Identity, bool) { return relay.Identity{}, false }
