// Package protocol defines the wire vocabulary shared by cadenza Nodes and
// Players: inbound frame envelopes, track-lifecycle events, server stats, and
// outbound command payloads for Lavalink- and Andesite-compatible playback
// nodes.
//
// Everything here is plain data. Connection handling, dispatch, and state
// live in the parent cadenza package.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Op identifies the type of a frame, inbound or outbound.
type Op string

// Inbound frame ops.
const (
	OpPlayerUpdate       Op = "playerUpdate"
	OpPlayerUpdateDashed Op = "player-update" // Andesite spelling
	OpEvent              Op = "event"
	OpStats              Op = "stats"
	OpMetadata           Op = "metadata"      // Andesite only
	OpConnectionID       Op = "connection-id" // Andesite only
	OpPong               Op = "pong"          // Andesite only
)

// Outbound command ops.
const (
	OpPlay              Op = "play"
	OpStop              Op = "stop"
	OpPause             Op = "pause"
	OpSeek              Op = "seek"
	OpVolume            Op = "volume"
	OpFilters           Op = "filters"
	OpDestroy           Op = "destroy"
	OpVoiceUpdate       Op = "voiceUpdate"
	OpVoiceServerUpdate Op = "voice-server-update" // Andesite spelling
	OpPing              Op = "ping"
	OpGetStats          Op = "get-stats"
)

// ErrMissingOp is returned by [DecodeFrame] for frames that carry no "op"
// field. Such frames are not an error at the connection level; callers log
// and skip them.
var ErrMissingOp = errors.New("protocol: frame has no op field")

// Frame is the envelope common to every inbound message. Raw holds the full
// original payload so op-specific decoders can re-parse it.
type Frame struct {
	Op      Op     `json:"op"`
	GuildID string `json:"guildId"`

	Raw json.RawMessage `json:"-"`
}

// DecodeFrame parses the envelope of an inbound message. It returns
// [ErrMissingOp] when the payload is valid JSON but has no op field.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("protocol: decode frame: %w", err)
	}
	if f.Op == "" {
		return Frame{}, ErrMissingOp
	}
	f.Raw = append(json.RawMessage(nil), data...)
	return f, nil
}

// PlayerState is the playback snapshot carried by a playerUpdate frame.
// Paused and Volume are only reported by Andesite nodes in native mode;
// they are nil when the node did not include them.
type PlayerState struct {
	// Time is the node's wall-clock timestamp for this snapshot, in ms.
	Time int64 `json:"time"`

	// Position is the playback position within the current track, in ms.
	Position int64 `json:"position"`

	Paused *bool `json:"paused,omitempty"`
	Volume *int  `json:"volume,omitempty"`
}

// PlayerUpdate is a decoded playerUpdate / player-update frame.
type PlayerUpdate struct {
	GuildID string      `json:"guildId"`
	State   PlayerState `json:"state"`
}

// DecodePlayerUpdate parses a playerUpdate frame payload.
func DecodePlayerUpdate(data []byte) (PlayerUpdate, error) {
	var u PlayerUpdate
	if err := json.Unmarshal(data, &u); err != nil {
		return PlayerUpdate{}, fmt.Errorf("protocol: decode playerUpdate: %w", err)
	}
	return u, nil
}

// ConnectionID is the Andesite connection-id frame, used for resumable
// sessions.
type ConnectionID struct {
	ID int64 `json:"id"`
}

// DecodeConnectionID parses a connection-id frame payload.
func DecodeConnectionID(data []byte) (ConnectionID, error) {
	var c ConnectionID
	if err := json.Unmarshal(data, &c); err != nil {
		return ConnectionID{}, fmt.Errorf("protocol: decode connection-id: %w", err)
	}
	return c, nil
}
