// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package health serves liveness endpoints for the relay and for each
// connected game session.
//
//	GET /health         200 while the process is up
//	GET /status/{name}  200 if session {name} sent a keepalive recently, else 404
//
// HEAD is accepted wherever GET is. Any other method gets 400.
package health

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// DefaultTimeout is how old a keepalive may be before a session counts as
// down.
const DefaultTimeout = 15 * time.Second

// Tracker records the last keepalive of every game session by profile name.
type Tracker struct {
	timeout time.Duration
	now     func() time.Time

	mu       sync.RWMutex
	lastSeen map[string]time.Time
}

func NewTracker(timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tracker{
		timeout:  timeout,
		now:      time.Now,
		lastSeen: make(map[string]time.Time),
	}
}

// Touch records a keepalive from the named session.
func (t *Tracker) Touch(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSeen[name] = t.now()
}

// Forget drops a session, e.g. after it disconnects.
func (t *Tracker) Forget(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastSeen, name)
}

// Alive reports whether name sent a keepalive within the timeout.
func (t *Tracker) Alive(name string) bool {
	t.mu.RLock()
	last, ok := t.lastSeen[name]
	t.mu.RUnlock()
	return ok && t.now().Sub(last) <= t.timeout
}

// Handler builds the HTTP router.
func (t *Tracker) Handler(log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Use(middleware.StripSlashes)
	r.Use(middleware.GetHead)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/status/{name}", func(w http.ResponseWriter, req *http.Request) {
		if t.Alive(chi.URLParam(req, "name")) {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	// Anything that is not a known route and method is a bad request.
	badRequest := func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}
	r.MethodNotAllowed(badRequest)
	r.NotFound(badRequest)
	return r
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Trace().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("Health request")
		})
	}
}

// Server runs the health router until its context ends.
type Server struct {
	addr    string
	tracker *Tracker
	log     zerolog.Logger
}

func NewServer(addr string, tracker *Tracker, log zerolog.Logger) *Server {
	return &Server{addr: addr, tracker: tracker, log: log}
}

// ListenAndServe blocks until ctx is done or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.tracker.Handler(s.log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", s.addr).Msg("Starting health server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
