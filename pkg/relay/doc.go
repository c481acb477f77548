// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package relay moves chat between a game session and auxiliary chat
// platforms.
//
// A [Bridge] is a pair of unbounded FIFO queues. The platform adapter holds
// the [PluginSide] and pushes [OutboundEvent] values destined for game chat;
// the game host holds the [ClientSide] and pushes [InboundEvent] values that
// the adapter relays to its platform.
//
// # Game side
//
// The host calls [ClientSide.ConsumeStep] (guarded by
// [ClientSide.HasPending]) or runs [ClientSide.Run] to deliver outbound
// events into game chat. Every event is split by [Chunk] so no chat packet
// exceeds the game's length limit. Chat observed in game is handed to
// [ClientSide.HandleChat], which resolves the sender against a [Directory],
// applies the [IgnoreList] and enqueues the result for the adapter.
//
// # Links
//
// Bridges can be linked with [Link]. Every outbound event consumed by one
// bridge is also pushed, as an inbound event, into each linked bridge, so a
// message from one platform reaches the others. Links are never removed and
// are not checked for cycles; linking a bridge to itself is a caller bug.
//
// # Identity binding
//
// A host may drive several local game accounts. [Mode] selects whether
// outbound delivery and inbound observation use every account or a single
// named one. An optional [Deduplicator] collapses the copies of one chat
// line seen by several accounts.
package relay
