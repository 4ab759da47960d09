package protocol

import (
	"encoding/json"
	"fmt"
)

// EventType is the discriminator carried in the "type" field of an event
// frame.
type EventType string

const (
	EventTrackStart      EventType = "TrackStartEvent"
	EventTrackEnd        EventType = "TrackEndEvent"
	EventTrackException  EventType = "TrackExceptionEvent"
	EventTrackStuck      EventType = "TrackStuckEvent"
	EventWebSocketClosed EventType = "WebSocketClosedEvent"
)

// Event is one parsed track-lifecycle event. The concrete type is one of
// [TrackStartEvent], [TrackEndEvent], [TrackExceptionEvent],
// [TrackStuckEvent], or [WebSocketClosedEvent].
type Event interface {
	// Type returns the wire discriminator for this event.
	Type() EventType

	// EventGuildID returns the guild the event belongs to.
	EventGuildID() string
}

// UnknownEventError is returned by [DecodeEvent] for event frames whose type
// discriminator is not part of the known set. Callers log and drop these.
type UnknownEventError struct {
	EventType string
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("protocol: unknown event type %q", e.EventType)
}

// TrackStartEvent signals that the node began playing a track.
type TrackStartEvent struct {
	GuildID string `json:"guildId"`
	TrackID string `json:"track"`
}

func (e *TrackStartEvent) Type() EventType      { return EventTrackStart }
func (e *TrackStartEvent) EventGuildID() string { return e.GuildID }

// TrackEndEvent signals that a track stopped playing.
type TrackEndEvent struct {
	GuildID string `json:"guildId"`
	TrackID string `json:"track"`

	// Reason is the node's end reason, e.g. "FINISHED", "REPLACED",
	// "STOPPED", "LOAD_FAILED", "CLEANUP".
	Reason string `json:"reason"`

	// MayStartNext reports whether the node considers it safe to start the
	// next track immediately.
	MayStartNext bool `json:"mayStartNext"`
}

func (e *TrackEndEvent) Type() EventType      { return EventTrackEnd }
func (e *TrackEndEvent) EventGuildID() string { return e.GuildID }

// TrackException describes the server-side error attached to a
// [TrackExceptionEvent].
type TrackException struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

// TrackExceptionEvent signals that playback of a track failed.
type TrackExceptionEvent struct {
	GuildID   string         `json:"guildId"`
	TrackID   string         `json:"track"`
	Exception TrackException `json:"exception"`
}

func (e *TrackExceptionEvent) Type() EventType      { return EventTrackException }
func (e *TrackExceptionEvent) EventGuildID() string { return e.GuildID }

// TrackStuckEvent signals that the node stopped receiving audio frames for a
// track for longer than the reported threshold.
type TrackStuckEvent struct {
	GuildID     string `json:"guildId"`
	TrackID     string `json:"track"`
	ThresholdMs int64  `json:"thresholdMs"`
}

func (e *TrackStuckEvent) Type() EventType      { return EventTrackStuck }
func (e *TrackStuckEvent) EventGuildID() string { return e.GuildID }

// WebSocketClosedEvent signals that the node's voice websocket to Discord
// was closed.
type WebSocketClosedEvent struct {
	GuildID  string `json:"guildId"`
	Code     int    `json:"code"`
	Reason   string `json:"reason"`
	ByRemote bool   `json:"byRemote"`
}

func (e *WebSocketClosedEvent) Type() EventType      { return EventWebSocketClosed }
func (e *WebSocketClosedEvent) EventGuildID() string { return e.GuildID }

// DecodeEvent parses an event frame payload into its concrete event type.
// Frames with an unrecognised type return an [*UnknownEventError].
func DecodeEvent(data []byte) (Event, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("protocol: decode event: %w", err)
	}

	var ev Event
	switch EventType(tag.Type) {
	case EventTrackStart:
		ev = &TrackStartEvent{}
	case EventTrackEnd:
		ev = &TrackEndEvent{}
	case EventTrackException:
		ev = &TrackExceptionEvent{}
	case EventTrackStuck:
		ev = &TrackStuckEvent{}
	case EventWebSocketClosed:
		ev = &WebSocketClosedEvent{}
	default:
		return nil, &UnknownEventError{EventType: tag.Type}
	}

	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("protocol: decode %s: %w", tag.Type, err)
	}
	return ev, nil
}
