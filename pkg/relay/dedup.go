// Copyright 2024-2026 Aiku AI

package relay

import (
	"sync"
	"time"
)

// Deduplicator collapses copies of one chat line reported by several local
// sessions. A session reporting the same line again is a real repeat and is
// not dropped.
type Deduplicator struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]*sighting
}

// sighting is the latest occurrence of a line and the sessions that have
// reported it.
type sighting struct {
	at        time.Time
	receivers map[string]struct{}
}

func NewDeduplicator(window time.Duration) *Deduplicator {
	return &Deduplicator{
		window: window,
		now:    time.Now,
		seen:   make(map[string]*sighting),
	}
}

// Seen records that receiver observed key and reports whether another
// receiver already reported the same occurrence within the window.
func (d *Deduplicator) Seen(key, receiver string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	for k, s := range d.seen {
		if now.Sub(s.at) >= d.window {
			delete(d.seen, k)
		}
	}
	s, ok := d.seen[key]
	if ok {
		if _, repeat := s.receivers[receiver]; !repeat {
			s.receivers[receiver] = struct{}{}
			return true
		}
	}
	d.seen[key] = &sighting{at: now, receivers: map[string]struct{}{receiver: {}}}
	return false
}

func dedupKey(sender Identity, text string) string {
	return sender.String() + "\x00" + text
}
