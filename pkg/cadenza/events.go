package cadenza

import (
	"time"

	"github.com/cadenza-audio/cadenza/pkg/cadenza/protocol"
)

// Event is a notification published to handlers registered with
// [Client.AddHandler]. The concrete type is one of the structs below.
type Event interface {
	// EventName returns a stable, namespaced name for the event kind.
	EventName() string
}

// TrackStart is published when a node reports that a track began playing.
type TrackStart struct {
	Player  *Player
	TrackID string
}

func (TrackStart) EventName() string { return "cadenza:track_start" }

// TrackEnd is published when a node reports that a track stopped playing.
type TrackEnd struct {
	Player  *Player
	TrackID string

	// Reason is the node's end reason, e.g. "FINISHED" or "REPLACED".
	Reason string

	// MayStartNext reports whether the node considers it safe to start the
	// next track immediately.
	MayStartNext bool
}

func (TrackEnd) EventName() string { return "cadenza:track_end" }

// TrackException is published when playback of a track failed server-side.
type TrackException struct {
	Player   *Player
	TrackID  string
	Message  string
	Severity string
	Cause    string
}

func (TrackException) EventName() string { return "cadenza:track_exception" }

// TrackStuck is published when the node stopped receiving audio frames for
// longer than the reported threshold.
type TrackStuck struct {
	Player    *Player
	TrackID   string
	Threshold time.Duration
}

func (TrackStuck) EventName() string { return "cadenza:track_stuck" }

// WebSocketClosed is published when the node's voice websocket to Discord
// was closed.
type WebSocketClosed struct {
	Player   *Player
	Code     int
	Reason   string
	ByRemote bool
}

func (WebSocketClosed) EventName() string { return "cadenza:websocket_closed" }

// TrackSkipped is published by the playback loop when a queued track could
// not be played and was dropped: resolution failed, the play command errored,
// or the node never confirmed the start. Bots surface this to the channel as
// a "skipping track" notice.
type TrackSkipped struct {
	Player *Player
	Track  protocol.Track
	Reason string
}

func (TrackSkipped) EventName() string { return "cadenza:track_skipped" }

// NodeDisconnected is published when a node's listen loop terminates because
// the remote closed the websocket or the read failed. It is not published
// for locally requested disconnects.
type NodeDisconnected struct {
	Node *Node
	Err  error
}

func (NodeDisconnected) EventName() string { return "cadenza:node_disconnected" }

// wrapProtocolEvent lifts a decoded wire event into the published form,
// attaching the owning player.
func wrapProtocolEvent(p *Player, ev protocol.Event) Event {
	switch ev := ev.(type) {
	case *protocol.TrackStartEvent:
		return TrackStart{Player: p, TrackID: ev.TrackID}
	case *protocol.TrackEndEvent:
		return TrackEnd{Player: p, TrackID: ev.TrackID, Reason: ev.Reason, MayStartNext: ev.MayStartNext}
	case *protocol.TrackExceptionEvent:
		return TrackException{
			Player:   p,
			TrackID:  ev.TrackID,
			Message:  ev.Exception.Message,
			Severity: ev.Exception.Severity,
			Cause:    ev.Exception.Cause,
		}
	case *protocol.TrackStuckEvent:
		return TrackStuck{Player: p, TrackID: ev.TrackID, Threshold: time.Duration(ev.ThresholdMs) * time.Millisecond}
	case *protocol.WebSocketClosedEvent:
		return WebSocketClosed{Player: p, Code: ev.Code, Reason: ev.Reason, ByRemote: ev.ByRemote}
	default:
		return nil
	}
}
