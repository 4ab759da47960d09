package protocol

import "encoding/json"

// Command payload structs for every outbound op. All commands share the
// op + guildId envelope; fields with omitempty are only sent when the caller
// sets them. Shapes follow the Lavalink/Andesite websocket contract.

// PlayCommand starts playback of a track.
type PlayCommand struct {
	Op      Op     `json:"op"`
	GuildID string `json:"guildId"`
	Track   string `json:"track"`

	// StartTime and EndTime are offsets in ms, sent only when inside the
	// open interval (0, track length).
	StartTime int64 `json:"startTime,omitempty"`
	EndTime   int64 `json:"endTime,omitempty"`

	NoReplace bool `json:"noReplace,omitempty"`
	Pause     bool `json:"pause,omitempty"`
}

// StopCommand stops the current track.
type StopCommand struct {
	Op      Op     `json:"op"`
	GuildID string `json:"guildId"`
}

// PauseCommand sets the paused flag.
type PauseCommand struct {
	Op      Op     `json:"op"`
	GuildID string `json:"guildId"`
	Pause   bool   `json:"pause"`
}

// SeekCommand moves the playback position, in ms.
type SeekCommand struct {
	Op       Op     `json:"op"`
	GuildID  string `json:"guildId"`
	Position int64  `json:"position"`
}

// VolumeCommand sets the player volume. The server-defined range is 0-1000.
type VolumeCommand struct {
	Op      Op     `json:"op"`
	GuildID string `json:"guildId"`
	Volume  int    `json:"volume"`
}

// FiltersCommand applies a filter payload built by the filters package. The
// filter entries are flattened into the top level of the frame alongside op
// and guildId, per the Lavalink filters contract.
type FiltersCommand struct {
	Op      Op
	GuildID string

	Payload map[string]any
}

// MarshalJSON flattens the payload entries into the command envelope.
func (c FiltersCommand) MarshalJSON() ([]byte, error) {
	frame := make(map[string]any, len(c.Payload)+2)
	for k, v := range c.Payload {
		frame[k] = v
	}
	frame["op"] = c.Op
	frame["guildId"] = c.GuildID
	return json.Marshal(frame)
}

// DestroyCommand tears down the server-side player for a guild.
type DestroyCommand struct {
	Op      Op     `json:"op"`
	GuildID string `json:"guildId"`
}

// VoiceUpdateCommand forwards the completed Discord voice handshake to the
// node. Op is either [OpVoiceUpdate] or [OpVoiceServerUpdate] depending on
// the node's protocol variant.
type VoiceUpdateCommand struct {
	Op        Op              `json:"op"`
	GuildID   string          `json:"guildId"`
	SessionID string          `json:"sessionId"`
	Event     json.RawMessage `json:"event"`
}

// PingCommand requests a pong frame (Andesite only).
type PingCommand struct {
	Op Op `json:"op"`
}

// GetStatsCommand requests a one-shot stats frame (Andesite only).
type GetStatsCommand struct {
	Op Op `json:"op"`
}
