// Copyright 2024-2026 Aiku AI

package chatfmt

import (
	"regexp"
	"strings"
)

var (
	mdBoldRe       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	mdItalicRe     = regexp.MustCompile(`(^|\s)[_*]([^\s_*](?:.*?[^\s_*])?)[_*]($|[\s.,!?])`)
	mdStrikeRe     = regexp.MustCompile(`~~(.+?)~~`)
	mdCodeRe       = regexp.MustCompile("`([^`]+)`")
	mdCodeBlockRe  = regexp.MustCompile("(?s)```(?:\\w+)?\\n?(.*?)```")
	mdImageRe      = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)
	mdLinkRe       = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	mdHeadingRe    = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	mdBlockquoteRe = regexp.MustCompile(`(?m)^>\s?`)
)

// MarkdownToPlain strips Mattermost markdown down to one line of plain text.
// Link targets are kept after the label.
func MarkdownToPlain(text string) string {
	if text == "" {
		return ""
	}

	text = mdCodeBlockRe.ReplaceAllStringFunc(text, func(match string) string {
		return strings.TrimSpace(mdCodeBlockRe.FindStringSubmatch(match)[1])
	})
	text = mdCodeRe.ReplaceAllString(text, "$1")

	text = mdImageRe.ReplaceAllString(text, "$2")
	text = mdLinkRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := mdLinkRe.FindStringSubmatch(match)
		if parts[1] == parts[2] {
			return parts[2]
		}
		return parts[1] + " (" + parts[2] + ")"
	})

	text = mdHeadingRe.ReplaceAllString(text, "$1")
	text = mdBlockquoteRe.ReplaceAllString(text, "> ")

	text = mdBoldRe.ReplaceAllString(text, "$1")
	text = mdStrikeRe.ReplaceAllString(text, "$1")
	text = mdItalicRe.ReplaceAllString(text, "$1$2$3")

	return Flatten(text)
}
