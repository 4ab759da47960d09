package cadenza

import "github.com/cadenza-audio/cadenza/pkg/cadenza/protocol"

// Capabilities describes the protocol dialect of a node: which optional ops
// it understands and how its endpoints are shaped. Use [Lavalink],
// [Andesite], or [AndesiteCompat] rather than constructing one by hand.
type Capabilities struct {
	// Ping reports whether the node answers ping frames with pong.
	Ping bool

	// Metadata reports whether the node pushes a metadata frame after the
	// handshake.
	Metadata bool

	// ConnectionID reports whether the node pushes a connection-id frame
	// for resumable sessions.
	ConnectionID bool

	// GetStats reports whether the node answers get-stats requests.
	GetStats bool

	// VoiceUpdateOp is the op name used to forward the Discord voice
	// handshake.
	VoiceUpdateOp protocol.Op

	// SocketPath is the websocket endpoint path, without a leading slash.
	SocketPath string
}

// Lavalink returns the capabilities of a standard Lavalink node.
func Lavalink() Capabilities {
	return Capabilities{
		VoiceUpdateOp: protocol.OpVoiceUpdate,
	}
}

// Andesite returns the capabilities of an Andesite node speaking its native
// protocol.
func Andesite() Capabilities {
	return Capabilities{
		Ping:          true,
		Metadata:      true,
		ConnectionID:  true,
		GetStats:      true,
		VoiceUpdateOp: protocol.OpVoiceServerUpdate,
		SocketPath:    "websocket",
	}
}

// AndesiteCompat returns the capabilities of an Andesite node serving its
// Lavalink-compatible endpoint. Ping and get-stats work on both of
// Andesite's websockets; the metadata and connection-id pushes do not.
func AndesiteCompat() Capabilities {
	return Capabilities{
		Ping:          true,
		GetStats:      true,
		VoiceUpdateOp: protocol.OpVoiceUpdate,
	}
}
