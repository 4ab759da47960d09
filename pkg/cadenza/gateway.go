// Package cadenza orchestrates Lavalink- and Andesite-compatible audio
// playback nodes for a Discord bot: it maintains the node websockets,
// dispatches inbound frames to per-guild players, drives queue-based
// playback, and exposes REST track search and decode.
//
// The package is transport-agnostic towards Discord itself: it talks to the
// host bot through the [Gateway] interface and receives voice handshake
// payloads through [Player.OnVoiceServerUpdate] and
// [Player.OnVoiceStateUpdate].
package cadenza

import "context"

// Gateway is the contract the host Discord library fulfils for cadenza. The
// internal/discord package provides a discordgo-backed implementation.
type Gateway interface {
	// WaitUntilReady blocks until the gateway session has received its
	// ready payload, or the context is done.
	WaitUntilReady(ctx context.Context) error

	// UserID returns the bot's own user ID. Only valid after
	// WaitUntilReady returned nil.
	UserID() string

	// UpdateVoiceState asks Discord to move the bot into the given voice
	// channel, or out of voice entirely when channelID is empty.
	UpdateVoiceState(ctx context.Context, guildID, channelID string, selfDeaf bool) error
}

// EventHandler receives events published by nodes and players. Handlers run
// synchronously on the node's listen loop so that dispatch order matches
// arrival order; handlers that block should hand off to their own goroutine.
type EventHandler func(event Event)
