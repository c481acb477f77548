// Copyright 2024-2026 Aiku AI

package relay

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseMode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		kind    string
		target  string
		want    Mode
		wantErr bool
	}{
		{kind: "", want: ModeAll()},
		{kind: "all", want: ModeAll()},
		{kind: "Default", want: ModeAll()},
		{kind: "single", target: "Steve", want: ModeSingle("Steve")},
		{kind: "single", wantErr: true},
		{kind: "some", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.target, func(t *testing.T) {
			t.Parallel()
			got, err := ParseMode(tt.kind, tt.target)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q, %q): err = %v, wantErr %v", tt.kind, tt.target, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseMode(%q, %q): got %v, want %v", tt.kind, tt.target, got, tt.want)
			}
		})
	}
}

func TestMode_String(t *testing.T) {
	t.Parallel()
	if got := ModeAll().String(); got != "all" {
		t.Errorf("ModeAll: got %q", got)
	}
	if got := ModeSingle("Steve").String(); got != "single:Steve" {
		t.Errorf("ModeSingle: got %q", got)
	}
}

func TestDeduplicator_Window(t *testing.T) {
	t.Parallel()
	now := time.Unix(1000, 0)
	d := NewDeduplicator(time.Second)
	d.now = func() time.Time { return now }

	if d.Seen("a", "Steve") {
		t.Error("first sighting should not be a duplicate")
	}
	if !d.Seen("a", "Alex") {
		t.Error("sighting by another session inside the window should be a duplicate")
	}
	now = now.Add(2 * time.Second)
	if d.Seen("a", "Alex") {
		t.Error("sighting after the window should not be a duplicate")
	}
	if len(d.seen) != 1 {
		t.Errorf("expired entries should be pruned, have %d", len(d.seen))
	}
}

func TestDeduplicator_SameSessionRepeat(t *testing.T) {
	t.Parallel()
	now := time.Unix(1000, 0)
	d := NewDeduplicator(time.Minute)
	d.now = func() time.Time { return now }

	tests := []struct {
		receiver string
		want     bool
	}{
		{"Steve", false},
		{"Alex", true},
		// Steve reporting again is a new occurrence of the line.
		{"Steve", false},
		{"Alex", true},
		{"Notch", true},
	}
	for i, tt := range tests {
		if got := d.Seen("k", tt.receiver); got != tt.want {
			t.Errorf("Seen #%d by %s: got %v, want %v", i, tt.receiver, got, tt.want)
		}
	}
}

func TestRoster(t *testing.T) {
	t.Parallel()
	r := NewRoster()
	id := uuid.New()
	r.Add(Identity{ID: id, Name: "Steve"}, Identity{Name: "no id"})
	if r.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", r.Len())
	}
	r.Add(Identity{ID: id, Name: "Steve2"})
	if got, ok := r.Lookup(id); !ok || got.Name != "Steve2" {
		t.Errorf("Lookup after rename: got (%v, %v)", got, ok)
	}
	r.Remove(id)
	if _, ok := r.Lookup(id); ok {
		t.Error("Lookup after Remove should fail")
	}
}
