// Copyright 2024-2026 Aiku AI

package relay

import (
	"fmt"
	"strings"
)

// Mode selects which local game sessions a bridge delivers through and
// listens to.
type Mode struct {
	Single bool
	// Target is the profile name of the only session used in single mode.
	Target string
}

// ModeAll uses every local session.
func ModeAll() Mode {
	return Mode{}
}

// ModeSingle uses only the session whose profile name is target.
func ModeSingle(target string) Mode {
	return Mode{Single: true, Target: target}
}

// ParseMode reads the configuration form of a mode: "all" (or empty) and
// "single".
func ParseMode(kind, target string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "all", "default":
		return ModeAll(), nil
	case "single":
		if target == "" {
			return Mode{}, fmt.Errorf("single mode requires a target session name")
		}
		return ModeSingle(target), nil
	default:
		return Mode{}, fmt.Errorf("unknown mode %q", kind)
	}
}

func (m Mode) String() string {
	if m.Single {
		return "single:" + m.Target
	}
	return "all"
}

// Accepts reports whether the session with the given profile name is used
// in this mode.
func (m Mode) Accepts(name string) bool {
	return !m.Single || name == m.Target
}

func (m Mode) eligible(sessions []Session) []Session {
	if !m.Single {
		return sessions
	}
	for _, s := range sessions {
		if s.Profile().Name == m.Target {
			return []Session{s}
		}
	}
	return nil
}

// local picks the identity used when forwarding to linked bridges. It does
// not depend on eligibility: the target when connected, else the first
// session, else ServerName.
func (m Mode) local(sessions []Session) Identity {
	if len(sessions) == 0 {
		return Identity{Name: ServerName}
	}
	if m.Single {
		for _, s := range sessions {
			if s.Profile().Name == m.Target {
				return s.Profile()
			}
		}
	}
	return sessions[0].Profile()
}
