// Copyright 2024-2026 Aiku AI

package chatfmt

import (
	"strings"
)

var discordEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`_`, `\_`,
	"`", "\\`",
	`>`, `\>`,
)

// EscapeDiscord backslash-escapes the characters Discord treats as markdown
// so game text is shown literally.
func EscapeDiscord(text string) string {
	return discordEscaper.Replace(text)
}
