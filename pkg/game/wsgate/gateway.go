// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package wsgate accepts websocket connections from game agents (a server
// plugin or a headless client) and exposes them to the relay as local game
// sessions.
package wsgate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/aiku/gamerelay/pkg/relay"
)

var (
	ErrUnauthorized = errors.New("wsgate: invalid token")
	ErrBadHandshake = errors.New("wsgate: expected hello frame with a profile")
)

const maxFrameSize = 64 * 1024

// ChatHandler receives chat observed by any session. relay.ClientSide
// implements it.
type ChatHandler interface {
	HandleChat(dir relay.Directory, n relay.ChatNotification) error
}

// KeepaliveRecorder is told about session liveness. health.Tracker
// implements it.
type KeepaliveRecorder interface {
	Touch(name string)
	Forget(name string)
}

// Config holds the gateway settings.
type Config struct {
	// Token, when set, must be presented in the hello frame.
	Token            string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// PingInterval is how often the gateway pings idle agents. Agents that
	// stay silent for twice this long are dropped.
	PingInterval time.Duration
}

func (c *Config) setDefaults() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
}

// Gateway is a relay.Game backed by websocket agents.
type Gateway struct {
	cfg       Config
	upgrader  websocket.Upgrader
	roster    *relay.Roster
	keepalive KeepaliveRecorder
	log       zerolog.Logger

	mu       sync.RWMutex
	sessions []*Session

	handlersMu sync.RWMutex
	handlers   []ChatHandler
}

var _ relay.Game = (*Gateway)(nil)

// New creates a gateway. keepalive may be nil.
func New(cfg Config, keepalive KeepaliveRecorder, log zerolog.Logger) *Gateway {
	cfg.setDefaults()
	return &Gateway{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.HandshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		roster:    relay.NewRoster(),
		keepalive: keepalive,
		log:       log.With().Str("component", "wsgate").Logger(),
	}
}

// Subscribe registers a handler for game chat.
func (g *Gateway) Subscribe(h ChatHandler) {
	g.handlersMu.Lock()
	defer g.handlersMu.Unlock()
	g.handlers = append(g.handlers, h)
}

// Sessions returns the connected sessions in connection order.
func (g *Gateway) Sessions() []relay.Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]relay.Session, len(g.sessions))
	for i, s := range g.sessions {
		out[i] = s
	}
	return out
}

func (g *Gateway) Lookup(id uuid.UUID) (relay.Identity, bool) {
	return g.roster.Lookup(id)
}

func (g *Gateway) addSession(s *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions = append(g.sessions, s)
}

func (g *Gateway) removeSession(s *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions = slices.DeleteFunc(g.sessions, func(other *Session) bool { return other == s })
}

// ServeHTTP upgrades the request and serves one agent until it disconnects.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)

	session, err := g.handshake(conn)
	if err != nil {
		g.log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Rejected game agent")
		code := websocket.CloseProtocolError
		if errors.Is(err, ErrUnauthorized) {
			code = websocket.ClosePolicyViolation
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, err.Error()),
			time.Now().Add(time.Second))
		return
	}

	log := g.log.With().Str("session", session.profile.Name).Logger()
	log.Info().Str("remote_addr", r.RemoteAddr).Msg("Game agent connected")
	g.addSession(session)
	if g.keepalive != nil {
		g.keepalive.Touch(session.profile.Name)
	}
	defer func() {
		g.removeSession(session)
		if g.keepalive != nil {
			g.keepalive.Forget(session.profile.Name)
		}
		log.Info().Msg("Game agent disconnected")
	}()

	stopPing := make(chan struct{})
	defer close(stopPing)
	go g.pingLoop(conn, stopPing)

	g.readLoop(session, log)
}

func (g *Gateway) handshake(conn *websocket.Conn) (*Session, error) {
	if err := conn.SetReadDeadline(time.Now().Add(g.cfg.HandshakeTimeout)); err != nil {
		return nil, err
	}
	var hello Frame
	if err := conn.ReadJSON(&hello); err != nil {
		return nil, fmt.Errorf("failed to read hello: %w", err)
	}
	if hello.Type != FrameHello || hello.Profile == nil || hello.Profile.Name == "" {
		return nil, ErrBadHandshake
	}
	if g.cfg.Token != "" && hello.Token != g.cfg.Token {
		return nil, ErrUnauthorized
	}
	g.roster.Add(*hello.Profile)
	return &Session{
		profile:      *hello.Profile,
		conn:         conn,
		writeTimeout: g.cfg.WriteTimeout,
	}, nil
}

func (g *Gateway) readLoop(s *Session, log zerolog.Logger) {
	idle := 2 * g.cfg.PingInterval
	_ = s.conn.SetReadDeadline(time.Now().Add(idle))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(idle))
	})

	for {
		var frame Frame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("Read from game agent failed")
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(idle))

		switch frame.Type {
		case FrameChat:
			g.dispatch(s, frame, log)
		case FramePlayers:
			g.roster.Add(frame.Players...)
			log.Trace().Int("players", len(frame.Players)).Msg("Player list updated")
		case FrameKeepalive:
			if g.keepalive != nil {
				g.keepalive.Touch(s.profile.Name)
			}
		default:
			log.Trace().Str("frame_type", frame.Type).Msg("Unhandled frame type")
		}
	}
}

func (g *Gateway) dispatch(s *Session, frame Frame, log zerolog.Logger) {
	n := relay.ChatNotification{
		SenderHint: frame.SenderName,
		Text:       frame.Text,
		Receiver:   s.profile,
	}
	if frame.SenderID != nil {
		n.SenderID = *frame.SenderID
	}

	g.handlersMu.RLock()
	handlers := slices.Clone(g.handlers)
	g.handlersMu.RUnlock()

	for _, h := range handlers {
		err := h.HandleChat(g, n)
		if err != nil && !errors.Is(err, relay.ErrProducerStopped) {
			log.Warn().Err(err).Msg("Failed to hand chat to bridge")
		}
	}
}

func (g *Gateway) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(g.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(g.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// Close disconnects every agent. Hijacked websocket connections are not
// closed by http.Server.Shutdown.
func (g *Gateway) Close() {
	g.mu.RLock()
	sessions := slices.Clone(g.sessions)
	g.mu.RUnlock()
	for _, s := range sessions {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay shutting down"),
			time.Now().Add(time.Second))
		_ = s.conn.Close()
	}
}

// ListenAndServe serves the gateway on addr at path until ctx is done.
func (g *Gateway) ListenAndServe(ctx context.Context, addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, g)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		g.Close()
	}()

	g.log.Info().Str("addr", addr).Str("path", path).Msg("Starting game gateway")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
