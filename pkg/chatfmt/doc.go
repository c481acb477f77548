// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package chatfmt converts message text between platform formats and the
// single-line plain text game chat accepts.
//
//   - [MatrixToPlain] flattens Matrix HTML.
//   - [MarkdownToPlain] flattens Mattermost markdown.
//   - [MatrixHTML] renders a game line for Matrix.
//   - [EscapeDiscord] escapes Discord markdown.
package chatfmt
