// Copyright 2024-2026 Aiku AI

package relay

// IgnoreList is an ordered set of display names whose chat is never relayed
// out of the game. Matching is exact and case-sensitive. The zero value is
// an empty list.
type IgnoreList struct {
	names []string
	set   map[string]struct{}
}

// NewIgnoreList builds a list from names, dropping duplicates and keeping
// first-seen order.
func NewIgnoreList(names ...string) IgnoreList {
	l := IgnoreList{set: make(map[string]struct{}, len(names))}
	for _, name := range names {
		if _, ok := l.set[name]; ok {
			continue
		}
		l.set[name] = struct{}{}
		l.names = append(l.names, name)
	}
	return l
}

// Contains reports whether name is on the list.
func (l IgnoreList) Contains(name string) bool {
	_, ok := l.set[name]
	return ok
}

// Names returns a copy of the list in insertion order.
func (l IgnoreList) Names() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

func (l IgnoreList) Len() int {
	return len(l.names)
}

// IsIgnored reports whether name is on list.
func IsIgnored(name string, list IgnoreList) bool {
	return list.Contains(name)
}
