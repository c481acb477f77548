// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"unicode/utf8"
)

const (
	// ChunkSize is the largest fragment Chunk produces, in bytes.
	ChunkSize = 254
	// chunkThreshold is the message length at which splitting starts.
	chunkThreshold = ChunkSize + 1
)

// Chunk formats "prefix: body" and splits it into fragments of at most
// ChunkSize bytes. Joining the fragments yields the formatted line exactly.
//
// Cuts back off to the start of a UTF-8 sequence so a multi-byte character
// is never split across fragments. Bytes that are not valid UTF-8 are cut
// where they fall.
func Chunk(prefix, body string) []string {
	msg := prefix + ": " + body
	if len(msg) < chunkThreshold {
		return []string{msg}
	}

	fragments := make([]string, 0, len(msg)/ChunkSize+1)
	for len(msg) >= chunkThreshold {
		cut := cutPoint(msg, ChunkSize)
		fragments = append(fragments, msg[:cut])
		msg = msg[cut:]
	}
	return append(fragments, msg)
}

// cutPoint returns the largest index <= n that starts a rune in s.
// s must be longer than n.
func cutPoint(s string, n int) int {
	for cut := n; cut > n-utf8.UTFMax && cut > 0; cut-- {
		if utf8.RuneStart(s[cut]) {
			return cut
		}
	}
	return n
}
