// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package chatfmt

import (
	"html"
	"regexp"
	"strings"

	"maunium.net/go/mautrix/event"
)

var (
	replyRe      = regexp.MustCompile(`(?s)<mx-reply>.*?</mx-reply>`)
	strongRe     = regexp.MustCompile(`(?s)<(?:strong|b)>(.*?)</(?:strong|b)>`)
	emRe         = regexp.MustCompile(`(?s)<(?:em|i)>(.*?)</(?:em|i)>`)
	delRe        = regexp.MustCompile(`(?s)<(?:del|s)>(.*?)</(?:del|s)>`)
	codeRe       = regexp.MustCompile(`(?s)<code[^>]*>(.*?)</code>`)
	preRe        = regexp.MustCompile(`(?s)<pre>(.*?)</pre>`)
	pillRe       = regexp.MustCompile(`<a href="https://matrix\.to/#/[@!#][^"]*"[^>]*>(.*?)</a>`)
	linkRe       = regexp.MustCompile(`<a href="([^"]+)"[^>]*>(.*?)</a>`)
	brRe         = regexp.MustCompile(`<br\s*/?>`)
	blockquoteRe = regexp.MustCompile(`(?s)<blockquote>(.*?)</blockquote>`)
	headingRe    = regexp.MustCompile(`(?s)<h[1-6]>(.*?)</h[1-6]>`)
	liRe         = regexp.MustCompile(`(?s)<li>(.*?)</li>`)
	pRe          = regexp.MustCompile(`(?s)<p>(.*?)</p>`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	newlineRe    = regexp.MustCompile(`[ \t]*\n[\s]*`)
)

// MatrixToPlain converts Matrix message content to one line of plain text.
// Reply fallbacks are dropped, links keep their target and user pills keep
// their display name.
func MatrixToPlain(content *event.MessageEventContent) string {
	if content == nil {
		return ""
	}
	if content.Format != event.FormatHTML || content.FormattedBody == "" {
		return Flatten(stripReplyFallback(content.Body))
	}

	text := replyRe.ReplaceAllString(content.FormattedBody, "")

	text = preRe.ReplaceAllString(text, "$1")
	text = codeRe.ReplaceAllString(text, "$1")

	text = strongRe.ReplaceAllString(text, "$1")
	text = emRe.ReplaceAllString(text, "$1")
	text = delRe.ReplaceAllString(text, "$1")

	text = pillRe.ReplaceAllString(text, "@$1")
	text = linkRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := linkRe.FindStringSubmatch(match)
		href, label := parts[1], tagRe.ReplaceAllString(parts[2], "")
		if label == "" || label == href {
			return href
		}
		return label + " (" + href + ")"
	})

	text = headingRe.ReplaceAllString(text, "$1\n")
	text = blockquoteRe.ReplaceAllStringFunc(text, func(match string) string {
		inner := blockquoteRe.FindStringSubmatch(match)[1]
		return "> " + strings.TrimSpace(tagRe.ReplaceAllString(inner, "")) + "\n"
	})
	text = liRe.ReplaceAllString(text, "- $1\n")
	text = pRe.ReplaceAllString(text, "$1\n")
	text = brRe.ReplaceAllString(text, "\n")
	text = tagRe.ReplaceAllString(text, "")

	return Flatten(html.UnescapeString(text))
}

// stripReplyFallback removes the "> <@user> quoted" lines Matrix clients put
// at the top of plain-text replies.
func stripReplyFallback(body string) string {
	if !strings.HasPrefix(body, "> ") {
		return body
	}
	lines := strings.Split(body, "\n")
	i := 0
	for i < len(lines) && strings.HasPrefix(lines[i], "> ") {
		i++
	}
	for i < len(lines) && lines[i] == "" {
		i++
	}
	if i == len(lines) {
		return body
	}
	return strings.Join(lines[i:], "\n")
}

// MatrixHTML renders a relayed game line as a Matrix plain body and HTML
// formatted body, with the sender in bold.
func MatrixHTML(sender, text string) (body, formatted string) {
	body = sender + ": " + text
	formatted = "<strong>" + html.EscapeString(sender) + "</strong>: " + html.EscapeString(text)
	return body, formatted
}

// Flatten joins lines with a single space and trims the result. Game chat
// cannot carry line breaks.
func Flatten(text string) string {
	return strings.TrimSpace(newlineRe.ReplaceAllString(strings.TrimSpace(text), " "))
}
