// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package health

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTracker_Alive(t *testing.T) {
	t.Parallel()
	now := time.Unix(1000, 0)
	tr := NewTracker(0)
	tr.now = func() time.Time { return now }

	if tr.Alive("Steve") {
		t.Error("unknown session should not be alive")
	}
	tr.Touch("Steve")
	now = now.Add(DefaultTimeout)
	if !tr.Alive("Steve") {
		t.Error("session should be alive exactly at the timeout")
	}
	now = now.Add(time.Second)
	if tr.Alive("Steve") {
		t.Error("session should be down after the timeout")
	}
	tr.Touch("Steve")
	tr.Forget("Steve")
	if tr.Alive("Steve") {
		t.Error("forgotten session should not be alive")
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()
	now := time.Unix(1000, 0)
	tr := NewTracker(15 * time.Second)
	tr.now = func() time.Time { return now }
	tr.Touch("Steve")
	tr.Touch("Stale")
	tr.lastSeen["Stale"] = now.Add(-time.Minute)

	srv := httptest.NewServer(tr.Handler(zerolog.Nop()))
	t.Cleanup(srv.Close)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodHead, "/health", http.StatusOK},
		{http.MethodGet, "/status/Steve", http.StatusOK},
		{http.MethodHead, "/status/Steve", http.StatusOK},
		{http.MethodGet, "/status/Stale", http.StatusNotFound},
		{http.MethodGet, "/status/Nobody", http.StatusNotFound},
		{http.MethodPost, "/health", http.StatusBadRequest},
		{http.MethodDelete, "/status/Steve", http.StatusBadRequest},
		{http.MethodGet, "/health/", http.StatusOK},
		{http.MethodGet, "/status/Steve/", http.StatusOK},
		{http.MethodGet, "/other", http.StatusBadRequest},
		{http.MethodGet, "/status", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			t.Parallel()
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			if err != nil {
				t.Fatalf("NewRequest: %v", err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("%s %s: %v", tt.method, tt.path, err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("%s %s: got %d, want %d", tt.method, tt.path, resp.StatusCode, tt.want)
			}
		})
	}
}
